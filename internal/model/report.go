// Package model defines the domain types shared across the sync pipeline.
package model

import "time"

// ReportType identifies a vendor report kind.
type ReportType string

const (
	ReportTraffic ReportType = "TRAFFIC_SOURCES"
	ReportOrders  ReportType = "ORDERS"
)

// JobState represents the lifecycle of one report job.
type JobState string

const (
	JobRequested JobState = "requested"
	JobPending   JobState = "pending"
	JobReady     JobState = "ready"
	JobFailed    JobState = "failed"
	JobTimedOut  JobState = "timed_out"
)

// Job is one report request: a date range and a report type.
type Job struct {
	DateFrom time.Time  `json:"date_from"`
	DateTo   time.Time  `json:"date_to"`
	Type     ReportType `json:"report_type"`
}

// Account is one client whose credentials drive a sequence of jobs.
type Account struct {
	ID           int64  `json:"id"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}
