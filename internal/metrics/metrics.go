package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the credit endpoint, labelled by outcome so the
// insufficient-balance rate is visible without log scraping.
var (
	CreditChecksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resume_credit_checks_total",
		Help: "Total number of credit balance checks",
	})

	CreditDeductionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resume_credit_deductions_total",
		Help: "Total number of credit deduction attempts",
	}, []string{"result"}) // ok / insufficient / unlimited / error

	CreditsDeducted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resume_credits_deducted_sum",
		Help: "Sum of credits successfully deducted",
	})

	PurchasesFulfilledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resume_purchases_fulfilled_total",
		Help: "Total number of purchase fulfillments",
	}, []string{"result"}) // credited / duplicate / error
)
