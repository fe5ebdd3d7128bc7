// Package sh provides an interactive diagnostic shell for a panel node.
package sh

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/panel.go/pkg/host"
	"github.com/robotalks/panel.go/pkg/l0/comm"
	"github.com/robotalks/panel.go/pkg/l0/stats"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	Timeout     time.Duration

	Shell  *ishell.Shell
	URL    string
	Node   uint16
	Client *host.Client

	conn   io.ReadWriteCloser
	cancel func()
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool
	linkURL    = "serial:///dev/ttyACM0"
	nodeID     uint

	// commands
	commands = []*ishell.Cmd{
		&ConnectCmd,
		&DisconnectCmd,
		&EchoCmd,
		&CounterCmd,
		&TaskCmd,
		&LEDCmd,
		&DisplayCmd,
		&PWMCmd,
		&EventsCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.StringVar(&linkURL, "link", linkURL, "Link to the node: serial:///dev/tty*, mqtt://, ws://")
	flag.UintVar(&nodeID, "node", nodeID, "Node ID")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(url string, node uint16) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Timeout:     host.DefaultTimeout,

		Shell: ishell.New(),
		URL:   url,
		Node:  node,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Client == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// Connect opens the link to the node.
func (s *Shell) Connect(url string, node uint16) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	conn, err := host.Dial(ctx, url, node)
	cancel()
	if err != nil {
		return err
	}
	s.Disconnect()
	s.URL, s.Node, s.conn = url, node, conn
	s.Client = host.NewClient(host.NewFIFO(conn, node))
	s.Client.Timeout = s.Timeout
	var runCtx context.Context
	runCtx, s.cancel = context.WithCancel(context.Background())
	go s.Client.Run(runCtx)
	s.Shell.SetPrompt(fmt.Sprintf("[%d] > ", node))
	return nil
}

// Disconnect closes the link.
func (s *Shell) Disconnect() {
	if s.Client != nil {
		s.cancel()
		s.conn.Close()
		s.Client, s.conn = nil, nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Print prints v as JSON or with the text formatter.
func (s *Shell) Print(c *ishell.Context, v interface{}, text string) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(text)
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.URL != "" {
		if err := s.Connect(s.URL, s.Node); err != nil {
			log.Fatalf("connect %q failed: %v", s.URL, err)
		}
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

func parseBytes(args []string) ([]byte, error) {
	out := make([]byte, len(args))
	for n, arg := range args {
		v, err := strconv.ParseUint(arg, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid byte %q", arg)
		}
		out[n] = byte(v)
	}
	return out, nil
}

func parseCounter(arg string) (stats.Counter, error) {
	if v, err := strconv.Atoi(arg); err == nil {
		return stats.Counter(v), nil
	}
	for c := stats.Counter(0); c < stats.NumCounters; c++ {
		if c.String() == arg {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown counter %q", arg)
}

var (
	// ConnectCmd connects a node.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "URL NODE",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			url, node := s.URL, s.Node
			if len(c.Args) > 0 {
				url = c.Args[0]
			}
			if len(c.Args) > 1 {
				v, err := strconv.ParseUint(c.Args[1], 0, 16)
				if err != nil || v > comm.MaxNodeID {
					c.Err(fmt.Errorf("invalid node %q", c.Args[1]))
					return
				}
				node = uint16(v)
			}
			if err := s.Connect(url, node); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects current node.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// EchoCmd sends bytes and prints the echo.
	EchoCmd = ishell.Cmd{
		Name: "echo",
		Help: "BYTES...",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			payload, err := parseBytes(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			start := time.Now()
			data, err := s.Client.Echo(context.Background(), payload...)
			if err != nil {
				c.Err(err)
				return
			}
			s.Print(c, map[string]interface{}{"payload": data, "rtt": time.Since(start).String()},
				fmt.Sprintf("% x (%s)", data, time.Since(start)))
		}),
	}

	// CounterCmd prints statistics counters.
	CounterCmd = ishell.Cmd{
		Name:    "counter",
		Aliases: []string{"stats"},
		Help:    "[COUNTER...]",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			var counters []stats.Counter
			for _, arg := range c.Args {
				counter, err := parseCounter(arg)
				if err != nil {
					c.Err(err)
					return
				}
				counters = append(counters, counter)
			}
			if len(counters) == 0 {
				for n := stats.Counter(0); n < stats.NumCounters; n++ {
					counters = append(counters, n)
				}
			}
			values := make(map[string]uint32)
			for _, counter := range counters {
				v, err := s.Client.Counter(context.Background(), counter)
				if err != nil {
					c.Err(fmt.Errorf("%s: %w", counter, err))
					return
				}
				values[counter.String()] = v
				if !s.OutputJSON {
					c.Printf("%-2d %-30s %d\n", int(counter), counter, v)
				}
			}
			if s.OutputJSON {
				s.Print(c, values, "")
			}
		}),
	}

	// TaskCmd prints stage runtime records.
	TaskCmd = ishell.Cmd{
		Name:    "task",
		Aliases: []string{"tasks"},
		Help:    "[INDEX]",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			var from, to byte = 0, 0xfe
			if len(c.Args) > 0 {
				v, err := parseBytes(c.Args[:1])
				if err != nil {
					c.Err(err)
					return
				}
				from, to = v[0], v[0]
			}
			var records []host.TaskRecord
			for i := int(from); i <= int(to); i++ {
				rec, err := s.Client.TaskStatus(context.Background(), byte(i))
				if errors.Is(err, host.ErrInvalidTask) && len(c.Args) == 0 {
					break
				}
				if err != nil {
					c.Err(err)
					return
				}
				records = append(records, rec)
				if !s.OutputJSON {
					c.Printf("%-3d run %10dus %3d%% high-water %d\n", rec.Index, rec.RunTime, rec.Percent, rec.HighWater)
				}
			}
			if s.OutputJSON {
				s.Print(c, records, "")
			}
		}),
	}

	// LEDCmd sets an LED group.
	LEDCmd = ishell.Cmd{
		Name: "led",
		Help: "SLOT INDEX STATE",
		Func: MustBeConnected(func(c *ishell.Context) {
			args, err := parseBytes(c.Args)
			if err != nil || len(args) != 3 {
				c.Err(fmt.Errorf("usage: led SLOT INDEX STATE"))
				return
			}
			if err := ShellFrom(c).Client.SetLED(args[0], args[1], args[2]); err != nil {
				c.Err(err)
			}
		}),
	}

	// DisplayCmd shows digits.
	DisplayCmd = ishell.Cmd{
		Name: "display",
		Help: "SLOT DIGITS [DOT]",
		Func: MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("usage: display SLOT DIGITS [DOT]"))
				return
			}
			nums := []string{c.Args[0]}
			if len(c.Args) > 2 {
				nums = append(nums, c.Args[2])
			}
			args, err := parseBytes(nums)
			if err != nil {
				c.Err(err)
				return
			}
			var dot byte
			if len(args) > 1 {
				dot = args[1]
			}
			if err := ShellFrom(c).Client.Display(args[0], c.Args[1], dot); err != nil {
				c.Err(err)
			}
		}),
	}

	// PWMCmd sets the backlight level.
	PWMCmd = ishell.Cmd{
		Name:    "pwm",
		Aliases: []string{"brightness"},
		Help:    "LEVEL",
		Func: MustBeConnected(func(c *ishell.Context) {
			args, err := parseBytes(c.Args)
			if err != nil || len(args) != 1 {
				c.Err(fmt.Errorf("usage: pwm LEVEL"))
				return
			}
			if err := ShellFrom(c).Client.SetPWM(args[0]); err != nil {
				c.Err(err)
			}
		}),
	}

	// EventsCmd prints input events for a while.
	EventsCmd = ishell.Cmd{
		Name: "events",
		Help: "[DURATION]",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			d := 10 * time.Second
			if len(c.Args) > 0 {
				v, err := time.ParseDuration(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				d = v
			}
			timer := time.NewTimer(d)
			defer timer.Stop()
			for {
				select {
				case msg := <-s.Client.EventChan():
					s.Print(c, msg, msg.String())
				case <-timer.C:
					return
				}
			}
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(linkURL, uint16(nodeID)).Run(flag.Args()...)
}
