// Command audit is the maintenance tool for the derived financial fields.
//
// By default it prints a reviewable SQL repair plan for under-collateralized
// users to stdout (redirect to a file, review, then execute the chosen
// option). With -recompute it first re-derives every user's cached aggregates
// from the ledger rows. With -apply-backfill it executes remediation option B
// directly instead of printing SQL.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/kamauw/familyholdings/pkg/ledger"
	"github.com/kamauw/familyholdings/pkg/store"
)

func main() {
	dbPath := flag.String("db", "familyholdings.db", "path to the SQLite database")
	recompute := flag.Bool("recompute", false, "recompute derived fields for all users before auditing")
	applyBackfill := flag.Bool("apply-backfill", false, "insert the synthetic backfill contribution (option B) for every flagged user")
	flag.Parse()

	s, err := store.NewSQLiteStore(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	l := ledger.NewLedger(s)

	if *recompute {
		users, err := l.GetAllUsers()
		if err != nil {
			log.Fatalf("Failed to list users: %v", err)
		}
		log.Println("Current state (before recompute):")
		for _, u := range users {
			log.Printf("  %s: %s contributed, %s loan balance",
				u.FullName, u.TotalContributed.StringFixed(2), u.CurrentLoanBalance.StringFixed(2))
		}

		outcomes, err := l.RecomputeAll()
		if err != nil {
			log.Fatalf("Recompute failed: %v", err)
		}
		for _, o := range outcomes {
			if o.Err != nil {
				log.Printf("  ERROR for user %s: %v", o.UserID, o.Err)
				continue
			}
			log.Printf("  %s: total=%s limit=%s balance=%s", o.UserID,
				o.Result.TotalContributed.StringFixed(2),
				o.Result.BorrowingLimit.StringFixed(2),
				o.Result.CurrentLoanBalance.StringFixed(2))
		}
	}

	entries, err := l.Audit()
	if err != nil {
		log.Fatalf("Audit failed: %v", err)
	}

	if *applyBackfill {
		if len(entries) == 0 {
			log.Println("No under-collateralized users; nothing to backfill.")
			return
		}
		for _, e := range entries {
			if e.Backfill == nil {
				log.Printf("User %s has no backfill option (deficit %s), skipping", e.UserID, e.DeficitToCover.StringFixed(2))
				continue
			}
			c, err := l.ApplyBackfill(e)
			if err != nil {
				log.Fatalf("Backfill for user %s failed: %v", e.UserID, err)
			}
			log.Printf("Backfilled %s for user %s in period %d/W%d (contribution %s)",
				c.Amount.StringFixed(2), e.UserID, c.PeriodYear, c.PeriodWeek, c.ID)
		}
		return
	}

	fmt.Print(ledger.RenderPlanSQL(entries))
}
