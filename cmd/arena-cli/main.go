// Command arena-cli is a small terminal client: it joins a game, renders
// every state update, and reads moves from stdin.
//
// Move input, one line per move:
//
//	tictactoe:   row col
//	connectfour: column
//	checkers:    fromRow fromCol toRow toCol
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/coder/websocket"
	"github.com/fatih/color"

	"github.com/gamelobby/arena/internal/protocol"
)

// boardState is the shape all three shipped games' states share on the
// wire. The CLI only renders; it never validates.
type boardState struct {
	Turn     *int    `json:"turn"`
	Finished bool    `json:"finished"`
	Winner   *winner `json:"winner"`
	Board    [][]int `json:"board"`
}

type winner struct {
	Player int      `json:"player"`
	Line   [][2]int `json:"line"`
}

var seatColors = []*color.Color{
	color.New(color.FgRed, color.Bold),
	color.New(color.FgYellow, color.Bold),
}

func main() {
	server := flag.String("server", "ws://localhost:8080/ws", "arena server websocket URL")
	game := flag.String("game", "tictactoe", "game to join: tictactoe, connectfour, checkers")
	flag.Parse()

	ctx := context.Background()
	conn, _, err := websocket.Dial(ctx, *server, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dial:", err)
		os.Exit(1)
	}
	defer conn.CloseNow()
	// Board states for checkers exceed the small default read limit.
	conn.SetReadLimit(1 << 20)

	if err := send(ctx, conn, protocol.ClientCommand{Action: protocol.ActionJoin, Game: *game}); err != nil {
		fmt.Fprintln(os.Stderr, "join:", err)
		os.Exit(1)
	}
	fmt.Printf("joined %q, waiting for a match...\n", *game)

	seat := -1
	go readMoves(ctx, conn, *game)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			fmt.Println("connection closed:", err)
			return
		}
		var cmd protocol.ServerCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			continue
		}
		switch {
		case cmd.Error != "":
			color.Red("server: %s", cmd.Error)
		case cmd.Action == protocol.ActionEnd:
			color.Cyan("match over: %s", cmd.Reason)
			return
		case cmd.Action == protocol.ActionUpdate:
			if cmd.Player != nil {
				seat = *cmd.Player
			}
			render(*game, seat, cmd.State)
		}
	}
}

func send(ctx context.Context, conn *websocket.Conn, cmd protocol.ClientCommand) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// readMoves pumps stdin lines into move commands.
func readMoves(ctx context.Context, conn *websocket.Conn, game string) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		move, err := parseMove(game, scanner.Text())
		if err != nil {
			color.Red("%v", err)
			continue
		}
		if err := send(ctx, conn, protocol.ClientCommand{Action: protocol.ActionMove, Move: move}); err != nil {
			return
		}
	}
}

func parseMove(game, line string) (json.RawMessage, error) {
	fields := strings.Fields(line)
	nums := make([]int, len(fields))
	for i, f := range fields {
		if _, err := fmt.Sscanf(f, "%d", &nums[i]); err != nil {
			return nil, fmt.Errorf("not a number: %q", f)
		}
	}
	switch game {
	case "tictactoe":
		if len(nums) != 2 {
			return nil, fmt.Errorf("expected: row col")
		}
		return json.Marshal(map[string]int{"row": nums[0], "col": nums[1]})
	case "connectfour":
		if len(nums) != 1 {
			return nil, fmt.Errorf("expected: column")
		}
		return json.Marshal(map[string]int{"column": nums[0]})
	case "checkers":
		if len(nums) != 4 {
			return nil, fmt.Errorf("expected: fromRow fromCol toRow toCol")
		}
		return json.Marshal(map[string][2]int{
			"from": {nums[0], nums[1]},
			"to":   {nums[2], nums[3]},
		})
	default:
		return nil, fmt.Errorf("unknown game %q", game)
	}
}

func render(game string, seat int, raw json.RawMessage) {
	var st boardState
	if err := json.Unmarshal(raw, &st); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println()
	for _, row := range st.Board {
		var sb strings.Builder
		for _, cell := range row {
			sb.WriteString(cellGlyph(game, cell))
			sb.WriteByte(' ')
		}
		fmt.Println(sb.String())
	}
	switch {
	case st.Winner != nil:
		if st.Winner.Player == seat {
			color.Green("you win!")
		} else {
			color.Red("seat %d wins", st.Winner.Player)
		}
	case st.Finished:
		color.Cyan("draw")
	case st.Turn != nil && *st.Turn == seat:
		color.Green("your move (you are seat %d)", seat)
	case st.Turn != nil:
		fmt.Printf("waiting for seat %d\n", *st.Turn)
	}
}

func cellGlyph(game string, cell int) string {
	if cell < 0 {
		return "."
	}
	c := seatColors[cell%len(seatColors)]
	glyphs := "XO"
	if game == "checkers" {
		// Kings render upper-case, men lower-case.
		if cell >= 2 {
			return c.Sprint(string("AB"[cell%2]))
		}
		return c.Sprint(string("ab"[cell%2]))
	}
	return c.Sprint(string(glyphs[cell%2]))
}
