package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tcmartin/crewdeck/pkg/models"
)

// ErrInvalidSchedule is returned for schedule triggers whose cron expression does not parse
var ErrInvalidSchedule = errors.New("invalid cron schedule")

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// TriggerService manages webhook, schedule and event triggers
type TriggerService struct {
	*Resource[models.Trigger]
}

// Create validates schedule triggers locally before posting
func (s *TriggerService) Create(ctx context.Context, trigger models.Trigger) (*models.Trigger, error) {
	if trigger.TriggerType == models.TriggerSchedule {
		expr, _ := trigger.Config["cron"].(string)
		if err := ValidateCron(expr); err != nil {
			return nil, err
		}
	}
	return s.Resource.Create(ctx, trigger)
}

// ValidateCron checks a standard five field expression or descriptor such as @hourly
func ValidateCron(expr string) error {
	if expr == "" {
		return fmt.Errorf("%w: expression is empty", ErrInvalidSchedule)
	}
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	return nil
}

// NextRuns returns the next n fire times of expr after from
func NextRuns(expr string, from time.Time, n int) ([]time.Time, error) {
	if err := ValidateCron(expr); err != nil {
		return nil, err
	}
	schedule, _ := cronParser.Parse(expr)

	runs := make([]time.Time, 0, n)
	next := from
	for i := 0; i < n; i++ {
		next = schedule.Next(next)
		if next.IsZero() {
			break
		}
		runs = append(runs, next)
	}
	return runs, nil
}
