package compiler

import (
	"sort"
	"strings"

	"github.com/marchellcx/labscript/internal/ir"
)

// Block is one compiled script section. The unnamed block ("") collects
// any lines before the first ':' marker.
type Block struct {
	Name         string
	Line         int // 1-based line of the ':' marker (0 for the unnamed block)
	Instructions []*ir.Instruction
}

// Script is a compiled script file: its blocks in source order.
type Script struct {
	Blocks []Block
}

// Block returns the instructions of the named block.
func (s *Script) Block(name string) ([]*ir.Instruction, bool) {
	for _, b := range s.Blocks {
		if b.Name == name {
			return b.Instructions, true
		}
	}
	return nil, false
}

// Names returns the block names in sorted order.
func (s *Script) Names() []string {
	names := make([]string, 0, len(s.Blocks))
	for _, b := range s.Blocks {
		names = append(names, b.Name)
	}
	sort.Strings(names)
	return names
}

// CompileScript compiles a script file. Lines starting with '#' and blank
// lines are ignored; a line starting with ':' opens the named block
// ':BlockId' running until the next ':' line or end of input; lines before
// the first ':' form the unnamed block. Blocks compile independently and
// errors from all of them are returned together.
func (c *Compiler) CompileScript(src string) (*Script, []*CompileError) {
	script := &Script{}
	var errs []*CompileError

	var (
		cur     *Block
		pending []*ir.Instruction
	)
	flush := func() {
		if cur == nil {
			if len(pending) == 0 {
				return
			}
			cur = &Block{Name: ""}
		}
		cur.Instructions = pending
		script.Blocks = append(script.Blocks, *cur)
		cur = nil
		pending = nil
	}

	for i, line := range strings.Split(src, "\n") {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if strings.HasPrefix(trimmed, ":") {
			flush()
			cur = &Block{Name: strings.TrimSpace(trimmed[1:]), Line: lineNo}
			continue
		}
		for _, inv := range SplitInvocations(trimmed) {
			in, err := c.CompileInvocation(inv, lineNo)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if in != nil {
				pending = append(pending, in)
			}
		}
	}
	flush()
	return script, errs
}
