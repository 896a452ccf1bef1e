package dsar

import (
	"math"
	"time"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

const day = 24 * time.Hour

type Risk struct {
	DaysSinceCreation  int       `json:"daysSinceCreation"`
	RiskLevel          RiskLevel `json:"riskLevel"`
	AutomationEligible bool      `json:"automationEligible"`
	Overdue            bool      `json:"overdue"`
	DaysUntilDue       int       `json:"daysUntilDue"`
}

func DueDate(submittedAt time.Time, slaDays int) time.Time {
	return submittedAt.AddDate(0, 0, slaDays)
}

func RiskFor(daysSinceCreation int) RiskLevel {
	switch {
	case daysSinceCreation >= 25:
		return RiskCritical
	case daysSinceCreation >= 20:
		return RiskHigh
	case daysSinceCreation >= 15:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Assess derives the SLA view of r at now.
func Assess(r Request, now time.Time) Risk {
	days := int(math.Floor(now.Sub(r.SubmittedAt).Hours() / 24))
	if days < 0 {
		days = 0
	}
	return Risk{
		DaysSinceCreation:  days,
		RiskLevel:          RiskFor(days),
		AutomationEligible: r.Status == StatusPending && r.RequestType.Exportable(),
		Overdue:            !r.Status.Terminal() && now.After(r.DueDate),
		DaysUntilDue:       int(math.Floor(r.DueDate.Sub(now).Hours() / 24)),
	}
}

func NewView(r Request, now time.Time) View {
	return View{Request: r, Risk: Assess(r, now)}
}
