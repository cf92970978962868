package vm

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/davecgh/go-spew/spew"
)

// DebugModel is the interactive single-step shell around a VM, grounded
// on hejops-gone/cpu/debugger.go's bubbletea model. It only ever drives
// the VM through Step — it never reaches into State directly to mutate
// it — so it carries none of the core's execution semantics itself.
type DebugModel struct {
	vm          *VM
	breakpoints map[uint16]bool // toggled with the 'b' key, keyed by address

	prevPC uint16
	err    error
	done   bool
	dump   bool
}

// NewDebugModel wraps a loaded VM for interactive stepping.
func NewDebugModel(m *VM) DebugModel {
	return DebugModel{vm: m, breakpoints: map[uint16]bool{}}
}

func (m DebugModel) Init() tea.Cmd { return nil }

func (m DebugModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "q", "ctrl+c":
		if m.vm.State.Halted {
			m.dump = true
		}
		return m, tea.Quit

	case " ", "n":
		m.step()
		return m, nil

	case "b":
		pc := m.vm.State.PC
		m.breakpoints[pc] = !m.breakpoints[pc]
		return m, nil

	case "r":
		for !m.vm.State.Halted && m.err == nil {
			if m.breakpoints[m.vm.State.PC] && m.vm.State.PC != m.prevPC {
				break
			}
			m.step()
		}
		if m.vm.State.Halted {
			m.dump = true
		}
		return m, nil
	}
	return m, nil
}

func (m *DebugModel) step() {
	m.prevPC = m.vm.State.PC
	if err := m.vm.Step(); err != nil && !errors.Is(err, ErrHalted) {
		m.err = err
	}
}

func (m DebugModel) View() string {
	if m.dump {
		return m.memoryDumpView()
	}
	if m.err != nil {
		return fmt.Sprintf("runtime error: %v\n\npress q to quit", m.err)
	}
	return lipgloss.JoinVertical(
		lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, m.pageTable(), m.status()),
		"",
		m.nextInstruction(),
		"",
		"n/space: step   b: toggle breakpoint   r: run to breakpoint   q: quit",
	)
}

func (m DebugModel) renderPage(start uint16) string {
	s := fmt.Sprintf("%04X | ", start)
	for i := 0; i < 16; i++ {
		addr := start + uint16(i)
		b := m.vm.State.RAM[addr]
		if addr == m.vm.State.PC {
			s += fmt.Sprintf("[%02X] ", b)
		} else {
			s += fmt.Sprintf(" %02X  ", b)
		}
	}
	return s
}

func (m DebugModel) pageTable() string {
	header := "addr | "
	for b := 0; b < 16; b++ {
		header += fmt.Sprintf("  %X  ", b)
	}
	rows := []string{header}

	page := m.vm.State.PC - (m.vm.State.PC % 16)
	start := page
	if start > 16 {
		start -= 16
	} else {
		start = 0
	}
	for i := 0; i < 4 && int(start)+i*16 < RAMSize; i++ {
		rows = append(rows, m.renderPage(start+uint16(i*16)))
	}
	return strings.Join(rows, "\n")
}

func (m DebugModel) status() string {
	s := m.vm.State
	flagChar := func(b bool, c byte) byte {
		if b {
			return c
		}
		return '.'
	}
	return fmt.Sprintf(`
 PC: %04X (was %04X)
ACC: %02X
  X: %02X
  Y: %02X
 SP: %02X
  Z C
  %c %c
`,
		s.PC, m.prevPC, s.ACC, s.X, s.Y, s.SP,
		flagChar(s.Z, 'Z'), flagChar(s.C, 'C'))
}

func (m DebugModel) nextInstruction() string {
	op := Opcode(m.vm.State.RAM[m.vm.State.PC])
	info, ok := Decode(op)
	if !ok {
		return spew.Sdump(op)
	}
	return spew.Sdump(info)
}

// memoryDumpView reimplements ask_dump_mem() from
// original_source/src/nanovm.c as a final static view instead of a
// blocking getchar() prompt: a hex+ASCII dump of the whole RAM buffer.
func (m DebugModel) memoryDumpView() string {
	var sb strings.Builder
	sb.WriteString("program finished — final memory dump\n\n")
	for addr := 0; addr < RAMSize; addr += 16 {
		sb.WriteString(fmt.Sprintf("%04X:   ", addr))
		for i := 0; i < 16; i++ {
			sb.WriteString(fmt.Sprintf("%02X ", m.vm.State.RAM[addr+i]))
		}
		sb.WriteString("  ")
		for i := 0; i < 16; i++ {
			c := m.vm.State.RAM[addr+i]
			if c < 33 || c > 126 {
				c = '.'
			}
			sb.WriteByte(c)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
