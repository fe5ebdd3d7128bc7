package comm

import "fmt"

// Command is the 5-bit operation selector carried by every message.
type Command byte

// CommandMask masks the command bits in the second header byte.
const CommandMask = 0x1f

// I/O commands.
const (
	CmdPWM Command = iota + 1
	CmdLEDOut
	CmdAD
	CmdKey
	CmdDisplay
	CmdRotary
	CmdTrim
	CmdOpto
	CmdRelay
	CmdDisplayControl
	CmdTCAS
	CmdFCU
	CmdSetValue
)

// System commands.
const (
	CmdDebug Command = iota + 16
	CmdDebugCtl1
	CmdDebugCtl2
	CmdDebugCtl3
	CmdEcho
	CmdIDTable
	CmdReset
	CmdErrorStatus
	CmdTaskStatus
	CmdUSBStatus
	CmdIDConfirmNode
	CmdIDConfirm
	CmdIDRequest
	CmdConfig
	CmdEnumerate
)

var commandNames = map[Command]string{
	CmdPWM:            "pwm",
	CmdLEDOut:         "led-out",
	CmdAD:             "ad",
	CmdKey:            "key",
	CmdDisplay:        "display",
	CmdRotary:         "rotary",
	CmdTrim:           "trim",
	CmdOpto:           "opto",
	CmdRelay:          "relay",
	CmdDisplayControl: "display-control",
	CmdTCAS:           "tcas",
	CmdFCU:            "fcu",
	CmdSetValue:       "set-value",
	CmdDebug:          "debug",
	CmdDebugCtl1:      "debug-ctl1",
	CmdDebugCtl2:      "debug-ctl2",
	CmdDebugCtl3:      "debug-ctl3",
	CmdEcho:           "echo",
	CmdIDTable:        "id-table",
	CmdReset:          "reset",
	CmdErrorStatus:    "error-status",
	CmdTaskStatus:     "task-status",
	CmdUSBStatus:      "usb-status",
	CmdIDConfirmNode:  "id-confirm-node",
	CmdIDConfirm:      "id-confirm",
	CmdIDRequest:      "id-request",
	CmdConfig:         "config",
	CmdEnumerate:      "enumerate",
}

// Commands lists every known command in numeric order.
func Commands() []Command {
	cmds := make([]Command, 0, len(commandNames))
	for c := Command(0); c <= CommandMask; c++ {
		if _, ok := commandNames[c]; ok {
			cmds = append(cmds, c)
		}
	}
	return cmds
}

// IsKnown checks if the command is in the command table.
func (c Command) IsKnown() bool {
	_, ok := commandNames[c]
	return ok
}

// String implements fmt.Stringer.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("cmd(%d)", byte(c))
}

// ParseCommand looks up a command by name or number.
func ParseCommand(s string) (Command, error) {
	for c, name := range commandNames {
		if name == s {
			return c, nil
		}
	}
	var n uint
	if _, err := fmt.Sscan(s, &n); err != nil || n > CommandMask {
		return 0, fmt.Errorf("unknown command %q", s)
	}
	return Command(n), nil
}
