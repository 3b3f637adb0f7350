package console

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"basketsync/internal/application/port"
)

type Sink struct {
	mu  sync.Mutex
	out io.Writer
}

func NewSink() port.Sink { return &Sink{out: os.Stdout} }

// NewWriterSink writes to w instead of stdout.
func NewWriterSink(w io.Writer) *Sink { return &Sink{out: w} }

func (s *Sink) WriteLive(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprint(s.out, line) // no newline
	return err
}

// 打印快照块后留一个空行占位，不立刻重画 live，等下一次变化刷新
func (s *Sink) WriteSnapshot(ts time.Time, lines []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprint(s.out, "\n"); err != nil {
		return err
	}
	stamp := ts.Format("2006-01-02 15:04:05")
	for _, line := range lines {
		if _, err := fmt.Fprintf(s.out, "%s %s\n", stamp, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(s.out, "\n")
	return err
}

func (s *Sink) NewLine() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprint(s.out, "\n")
	return err
}
