package metrics

import (
	"os"
	"runtime"
	"time"

	"github.com/glotchimo/afkguard/internal/models"
	"github.com/shirou/gopsutil/v4/process"
)

type VoiceCounter interface {
	VoiceConnectionCount() int
}

// Source reports live process figures alongside the bot's voice connection count.
type Source struct {
	voice   VoiceCounter
	started time.Time
	proc    *process.Process
}

func NewSource(voice VoiceCounter) *Source {
	s := &Source{voice: voice, started: time.Now()}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		s.proc = p
	}
	return s
}

func (s *Source) Uptime() time.Duration {
	return time.Since(s.started)
}

func (s *Source) VoiceConnections() int {
	if s.voice == nil {
		return 0
	}
	return s.voice.VoiceConnectionCount()
}

// Memory falls back to the runtime's view of mapped memory when the OS
// resident set size is unavailable.
func (s *Source) Memory() models.Memory {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m := models.Memory{HeapUsed: ms.HeapAlloc, HeapTotal: ms.HeapSys, RSS: ms.Sys}
	if s.proc != nil {
		if info, err := s.proc.MemoryInfo(); err == nil && info.RSS > 0 {
			m.RSS = info.RSS
		}
	}
	return m
}
