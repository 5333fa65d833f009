package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/predibot/internal/domain"
	"github.com/alejandrodnm/predibot/internal/ports"
)

// Console implementa ports.Notifier imprimiendo a stdout.
type Console struct {
	out io.Writer
}

// NewConsole crea el notificador de consola.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// NotifyDecision anuncia una apuesta recién colocada.
func (c *Console) NotifyDecision(_ context.Context, snap ports.PredictionSnapshot) error {
	d := snap.Decision
	if d == nil {
		return nil
	}

	now := time.Now().Format("15:04:05")
	fmt.Fprintf(c.out, "\n[%s] BET %s @%s — %q\n",
		now, snap.EventID, snap.StreamerID, snap.Title)
	fmt.Fprintf(c.out, "  %d pts on %q (%s, conf %.2f)\n",
		d.Amount, outcomeTitle(snap.Outcomes, d.OutcomeIndex), d.Reason, d.Confidence)
	return nil
}

// NotifyResult anuncia el desenlace de una predicción apostada.
func (c *Console) NotifyResult(_ context.Context, snap ports.PredictionSnapshot, result domain.Result) error {
	now := time.Now().Format("15:04:05")

	switch result.Type {
	case domain.ResultWin:
		fmt.Fprintf(c.out, "[%s] WIN  %s @%s — +%d pts\n",
			now, snap.EventID, snap.StreamerID, result.PointsGained)
	case domain.ResultLose:
		fmt.Fprintf(c.out, "[%s] LOSE %s @%s — %d pts\n",
			now, snap.EventID, snap.StreamerID, result.PointsGained)
	case domain.ResultRefund:
		fmt.Fprintf(c.out, "[%s] REFUND %s @%s\n", now, snap.EventID, snap.StreamerID)
	}
	return nil
}

// Report imprime la tabla de predicciones activas y el resumen de perfiles.
func (c *Console) Report(_ context.Context, active []ports.PredictionSnapshot, profiles []domain.StreamerProfile) error {
	now := time.Now().Format("15:04:05")

	if len(active) == 0 {
		fmt.Fprintf(c.out, "[%s] no active predictions\n", now)
	} else {
		fmt.Fprintf(c.out, "\n[%s] %d active predictions\n", now, len(active))
		c.printActive(active)
	}

	if len(profiles) > 0 {
		c.printProfiles(profiles)
	}
	return nil
}

// printActive imprime una fila por predicción en seguimiento.
func (c *Console) printActive(active []ports.PredictionSnapshot) {
	table := tablewriter.NewWriter(c.out)
	table.Header("Event", "Streamer", "Title", "Cat", "Phase", "Users", "Lead%", "Bet", "Left")

	for _, snap := range active {
		bet := "-"
		if snap.Decision != nil {
			bet = fmt.Sprintf("%d pts", snap.Decision.Amount)
		}
		table.Append(
			snap.EventID,
			snap.StreamerID,
			truncate(snap.Title, 30),
			string(snap.Category),
			string(snap.Phase),
			fmt.Sprintf("%d", domain.TotalUsers(snap.Outcomes)),
			fmt.Sprintf("%.1f", domain.LeadingShare(snap.Outcomes)),
			bet,
			snap.Remaining,
		)
	}
	table.Render()
}

// printProfiles imprime el resumen de aprendizaje por streamer.
func (c *Console) printProfiles(profiles []domain.StreamerProfile) {
	table := tablewriter.NewWriter(c.out)
	table.Header("Streamer", "Resolved", "Crowd%", "Strategy", "Conf", "Bets W/P", "Net pts")

	for _, p := range profiles {
		rec := p.Recommendations
		strat := string(rec.Strategy)
		if rec.Learning {
			strat += " (learning)"
		}
		table.Append(
			p.StreamerID,
			fmt.Sprintf("%d", p.TotalResolved()),
			fmt.Sprintf("%.0f", 100*p.OverallAccuracy()),
			strat,
			fmt.Sprintf("%.2f", rec.Confidence),
			fmt.Sprintf("%d/%d", p.Ledger.BetsWon, p.Ledger.BetsPlaced),
			fmt.Sprintf("%+d", p.Ledger.PointsWon-p.Ledger.PointsLost),
		)
	}
	table.Render()
}

func outcomeTitle(outs []domain.OutcomeStats, idx int) string {
	if idx < 0 || idx >= len(outs) {
		return "?"
	}
	if outs[idx].Title != "" {
		return outs[idx].Title
	}
	return outs[idx].ID
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
