package vm

// Snapshot is a rendered copy of execution state for diagnostics. Cells are
// stored as literals so a snapshot stays meaningful outside the process.
type Snapshot struct {
	RunID    string
	Executor string
	Module   string
	IP       int
	Op       string
	Steps    uint64
	Stack    []string
	Frames   []FrameSnapshot
	Globals  []string
	Error    string
}

// FrameSnapshot describes one active frame, innermost last.
type FrameSnapshot struct {
	Function string
	Module   string
	Nest     int
	ReturnIP int
	Locals   []string
}

// Snapshot captures the current state. After a failed step IP and Op
// identify the failing instruction.
func (e *Executor) Snapshot() *Snapshot {
	s := &Snapshot{
		RunID:    e.runID.String(),
		Executor: e.name,
		Module:   e.module.Name,
		IP:       e.ip,
		Op:       e.op.String(),
		Steps:    e.steps,
		Stack:    literals(e.stack),
		Globals:  literals(e.main.Globals),
	}
	if e.failed != nil {
		s.IP = e.opStart
		s.Error = e.failed.Error()
	}
	for _, f := range e.frames {
		s.Frames = append(s.Frames, FrameSnapshot{
			Function: f.Name(),
			Module:   f.Module.Name,
			Nest:     f.Nest,
			ReturnIP: f.ReturnIP,
			Locals:   literals(f.Locals),
		})
	}
	return s
}

func literals(cells []Cell) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = c.Literal()
	}
	return out
}
