package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc"
	prompt "github.com/c-bata/go-prompt"
	"github.com/samber/lo"
)

// replClient holds the single connection the interactive client sends
// commands over. Adapted from yeqown-memcached's cmd/memcached-cli
// replCommander, minus its multi-context management: calod's client
// talks to exactly one server per invocation.
type replClient struct {
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
}

var replCommands = []prompt.Suggest{
	{Text: "ping", Description: "Check server liveness"},
	{Text: "echo", Description: "Echo arguments back"},
	{Text: "get", Description: "Get value by key"},
	{Text: "set", Description: "Set key to value, optionally EX/PX <n>"},
	{Text: "del", Description: "Delete one or more keys"},
	{Text: "help", Description: "Show this help message"},
	{Text: "exit", Description: "Exit the program"},
	{Text: "quit", Description: "Exit the program"},
}

func runClientREPL(addr string, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	client := &replClient{conn: conn, reader: bufio.NewReader(conn), timeout: timeout}

	fmt.Println(heredoc.Doc(fmt.Sprintf(`
		Connected to calod at %s
		Type 'help' to see available commands.
		Type 'exit' or 'quit' to disconnect.
	`, addr)))

	p := prompt.New(
		client.execute,
		client.complete,
		prompt.OptionTitle("calod-cli"),
		prompt.OptionPrefix(">>> "),
		prompt.OptionInputTextColor(prompt.Yellow),
	)
	p.Run()
	return nil
}

func (c *replClient) complete(d prompt.Document) []prompt.Suggest {
	word := d.GetWordBeforeCursor()
	if word == "" {
		return nil
	}
	return prompt.FilterHasPrefix(replCommands, word, true)
}

func (c *replClient) execute(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])

	switch cmd {
	case "exit", "quit":
		fmt.Println("bye!")
		os.Exit(0)
	case "help":
		c.printHelp()
		return
	}

	// Only the command name needs normalizing to the wire spelling
	// (the REPL accepts the "del" shorthand for DELETE); arguments are
	// sent verbatim.
	args := lo.Map(fields, func(s string, i int) string {
		if i == 0 {
			return wireCommandName(s)
		}
		return s
	})

	frame := ArrayFrame(bulkStringFrames(args))
	if _, err := c.conn.Write(encodeRESP(frame)); err != nil {
		fmt.Printf("write error: %v\n", err)
		return
	}

	c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	reply, err := c.readReply()
	if err != nil {
		fmt.Printf("read error: %v\n", err)
		return
	}
	fmt.Println(formatReply(reply))
}

// commandAliases maps REPL shorthand to the wire command name.
var commandAliases = map[string]string{
	"del": "DELETE",
}

func wireCommandName(name string) string {
	if alias, ok := commandAliases[strings.ToLower(name)]; ok {
		return alias
	}
	return strings.ToUpper(name)
}

func bulkStringFrames(args []string) []RESPFrame {
	frames := make([]RESPFrame, len(args))
	for i, a := range args {
		frames[i] = BulkStringFrame([]byte(a))
	}
	return frames
}

// readReply accumulates bytes from the connection until a full frame
// parses, mirroring the server's own incremental-parse loop in
// connection.go rather than assuming one Read call returns one frame.
func (c *replClient) readReply() (RESPFrame, error) {
	var buf []byte
	chunk := make([]byte, 1024)
	for {
		frame, _, err := parseRESP(buf)
		if err == nil {
			return frame, nil
		}
		if err != ErrIncompleteInput {
			return RESPFrame{}, err
		}

		n, rerr := c.conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if rerr != nil {
			return RESPFrame{}, rerr
		}
	}
}

func formatReply(f RESPFrame) string {
	switch f.Kind {
	case KindSimpleString:
		return f.Str
	case KindError:
		return "(error) " + f.Str
	case KindInteger:
		return fmt.Sprintf("(integer) %d", f.Int)
	case KindBulkString:
		if f.IsNull {
			return "(nil)"
		}
		return string(f.Bulk)
	case KindArray:
		if f.IsNull {
			return "(nil)"
		}
		parts := make([]string, len(f.Array))
		for i, elem := range f.Array {
			parts[i] = fmt.Sprintf("%d) %s", i+1, formatReply(elem))
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

func (c *replClient) printHelp() {
	fmt.Println(heredoc.Doc(`
		Available commands:
		  ping                    Check server liveness
		  echo <msg...>           Echo arguments back
		  get <key>               Get value by key
		  set <key> <value> [EX s|PX ms]  Set key to value
		  del <key...>            Delete one or more keys
		  help                    Show this help message
		  exit, quit              Disconnect
	`))
}
