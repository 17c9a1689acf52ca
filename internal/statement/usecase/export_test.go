package usecase

import "time"

func (p *Pipeline) SetClock(now func() time.Time) { p.now = now }

func (s *ReminderSweeper) SetClock(now func() time.Time) { s.now = now }
