package pipeline

import "time"

// Stats is a snapshot of pipeline counters. Processed + Failed never
// exceeds Total. Documents started before the last ResetStats are not
// counted when they finish.
type Stats struct {
	Total        int
	Processed    int
	Failed       int
	CurrentStage Stage
	StartTime    time.Time
	EndTime      time.Time
}

// Duration is the time between the first start and the last completion.
func (s Stats) Duration() time.Duration {
	if s.StartTime.IsZero() || s.EndTime.Before(s.StartTime) {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// SuccessRate is Processed / Total, 0 when nothing ran.
func (s Stats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Processed) / float64(s.Total)
}

// Stats returns a copy of the counters.
func (p *Pipeline) Stats() Stats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.stats
}

// ResetStats clears the counters for a fresh run.
func (p *Pipeline) ResetStats() {
	p.statsMu.Lock()
	p.stats = Stats{}
	p.gen++
	p.statsMu.Unlock()
}

// started counts a new document and returns the generation it belongs to.
func (p *Pipeline) started() uint64 {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.Total++
	if p.stats.StartTime.IsZero() {
		p.stats.StartTime = time.Now()
	}
	return p.gen
}

func (p *Pipeline) entered(gen uint64, s Stage) {
	p.statsMu.Lock()
	if gen == p.gen {
		p.stats.CurrentStage = s
	}
	p.statsMu.Unlock()
}

func (p *Pipeline) finished(gen uint64, ok bool) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	if gen != p.gen {
		return
	}
	if ok {
		p.stats.Processed++
	} else {
		p.stats.Failed++
	}
	p.stats.EndTime = time.Now()
}
