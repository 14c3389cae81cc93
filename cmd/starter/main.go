package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"go.temporal.io/sdk/client"

	"leave-approval-service/internal/engine"
	"leave-approval-service/internal/model"
)

// Starts one leave approval process instance from the command line for
// demo/testing. Real submissions come through POST /api/start-process.
func main() {
	var (
		requester = flag.String("requester", "Jane Smith", "requester name")
		email     = flag.String("email", "", "requester email")
		reason    = flag.String("reason", "Annual vacation", "reason text")
		days      = flag.Int("days", 7, "number of leave days")
		leaveType = flag.String("type", "vacation", "leave type")
		startDate = flag.String("start", "", "start date (2006-01-02), required above 5 days")
		endDate   = flag.String("end", "", "end date (2006-01-02), required above 5 days")
		hostPort  = flag.String("temporal", "localhost:7233", "Temporal host:port")
		wait      = flag.Bool("wait", false, "wait for the process outcome")
	)
	flag.Parse()

	tc, err := client.Dial(client.Options{HostPort: *hostPort})
	if err != nil {
		log.Fatalf("unable to create Temporal client: %v", err)
	}
	defer tc.Close()

	eng := engine.NewTemporalEngine(tc, slog.New(slog.NewTextHandler(os.Stderr, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pik, err := eng.StartProcess(ctx, model.LeaveRequest{
		Requester:      *requester,
		RequesterEmail: *email,
		Reason:         *reason,
		Days:           *days,
		LeaveType:      model.LeaveType(*leaveType),
		StartDate:      *startDate,
		EndDate:        *endDate,
	})
	if err != nil {
		log.Fatalf("unable to start process: %v", err)
	}
	log.Printf("started process instance: %s\n", pik)

	if !*wait {
		return
	}

	// The outcome arrives only after reviewers decide, so wait without a
	// deadline and let the operator interrupt.
	var result string
	if err := tc.GetWorkflow(context.Background(), pik, "").Get(context.Background(), &result); err != nil {
		log.Fatalf("unable to get process result: %v", err)
	}
	log.Printf("process result: %s\n", result)
}
