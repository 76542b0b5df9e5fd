package publisher

import (
	"errors"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var seqRe = regexp.MustCompile(`post_(\d+)`)

// Sequencer 分配贴文流水号。每次 Next 之后必须调用 Release，
// 无论文件是否写成功。
type Sequencer interface {
	Next() (int, error)
	Release(n int)
}

// ScanSequencer 每次都重新扫描目录；并发调用可能拿到同一个号。
type ScanSequencer struct {
	Dir string
}

func (s ScanSequencer) Next() (int, error) {
	max, err := MaxSequence(s.Dir)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

func (ScanSequencer) Release(int) {}

// LockedSequencer 在互斥锁下分配，并记住尚未落盘的号，
// 同一进程内的并发请求不会拿到重复的号。号码只由磁盘上的文件和进行中的请求决定，
// 失败的请求 Release 后该号会被下一个请求复用。
type LockedSequencer struct {
	Dir string

	mu       sync.Mutex
	inFlight map[int]struct{}
}

func NewLockedSequencer(dir string) *LockedSequencer {
	return &LockedSequencer{Dir: dir, inFlight: make(map[int]struct{})}
}

func (s *LockedSequencer) Next() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	max, err := MaxSequence(s.Dir)
	if err != nil {
		return 0, err
	}
	for n := range s.inFlight {
		if n > max {
			max = n
		}
	}
	if s.inFlight == nil {
		s.inFlight = make(map[int]struct{})
	}
	s.inFlight[max+1] = struct{}{}
	return max + 1, nil
}

// Release 结束对 n 的占用；成功时文件已在磁盘上，之后由扫描接管。
func (s *LockedSequencer) Release(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, n)
}

// MaxSequence returns the highest N among post_<N>*.json files in dir, or 0
// when there are none or dir does not exist yet.
func MaxSequence(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	max := 0
	for _, e := range entries {
		if n, ok := sequenceOf(e.Name()); ok && n > max {
			max = n
		}
	}
	return max, nil
}

func sequenceOf(name string) (int, bool) {
	if !strings.HasPrefix(name, "post_") || !strings.HasSuffix(name, ".json") {
		return 0, false
	}
	m := seqRe.FindStringSubmatch(name)
	if len(m) != 2 {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
