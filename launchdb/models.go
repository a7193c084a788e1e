package launchdb

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
)

type LaunchStatus string

const (
	LaunchStatusPrepared  LaunchStatus = "prepared"
	LaunchStatusSubmitted LaunchStatus = "submitted"
	LaunchStatusConfirmed LaunchStatus = "confirmed"
	LaunchStatusFailed    LaunchStatus = "failed"
	LaunchStatusTimedOut  LaunchStatus = "timed_out"
)

func (e *LaunchStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = LaunchStatus(s)
	case string:
		*e = LaunchStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for LaunchStatus: %T", src)
	}
	return nil
}

func (e LaunchStatus) Value() (driver.Value, error) {
	return string(e), nil
}

type Launch struct {
	ID                   string
	Mint                 string
	Creator              string
	Plan                 string
	Name                 string
	Symbol               string
	MetadataUri          string
	Status               LaunchStatus
	Signature            string
	ErrorKind            string
	Registered           bool
	LastValidBlockHeight int64
	CreatedAt            sql.NullTime
	UpdatedAt            sql.NullTime
}
