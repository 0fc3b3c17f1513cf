package enterprise

import (
	"enterprise_sim/internal/domain"
)

// Record appends an entry to the event log, evicting the oldest past capacity.
func (s *State) Record(kind domain.LogKind, message, details string) domain.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordLocked(kind, message, details)
}

func (s *State) recordLocked(kind domain.LogKind, message, details string) domain.LogEntry {
	entry := domain.LogEntry{
		ID:        s.newID(),
		Timestamp: s.now(),
		Kind:      kind,
		Message:   message,
		Details:   details,
	}
	logs := make([]domain.LogEntry, 0, LogCapacity)
	logs = append(logs, entry)
	logs = append(logs, s.logs...)
	if len(logs) > LogCapacity {
		logs = logs[:LogCapacity]
	}
	s.logs = logs
	s.logTotal++
	s.publish(domain.Event{Kind: domain.EventKindLog, Log: &entry, At: entry.Timestamp})
	return entry
}

// Logs returns retained entries, newest first.
func (s *State) Logs() []domain.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.LogEntry(nil), s.logs...)
}

// RecentLogs returns at most n of the newest entries.
func (s *State) RecentLogs(n int) []domain.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.logs) {
		n = len(s.logs)
	}
	return append([]domain.LogEntry(nil), s.logs[:n]...)
}

// LogTotal counts every entry recorded since the last reset, evicted ones included.
func (s *State) LogTotal() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logTotal
}
