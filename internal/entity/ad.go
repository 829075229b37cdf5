package entity

import (
	"encoding/json"
	"strconv"
	"time"
)

// Reach is an audience-reach figure. The archive API reports it either as a
// plain number or as a range object whose upper bound we take.
type Reach int64

func (r *Reach) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*r = Reach(n)
		return nil
	}
	var obj struct {
		UpperBound json.RawMessage `json:"ub"`
	}
	if err := json.Unmarshal(data, &obj); err != nil || obj.UpperBound == nil {
		*r = 0
		return nil
	}
	if err := json.Unmarshal(obj.UpperBound, &n); err == nil {
		*r = Reach(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(obj.UpperBound, &s); err == nil {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			*r = Reach(v)
			return nil
		}
	}
	*r = 0
	return nil
}

// BeneficiaryPayer is one beneficiary/payer disclosure entry on an ad.
type BeneficiaryPayer struct {
	Beneficiary string `json:"beneficiary"`
	Payer       string `json:"payer"`
}

// ArchiveAd is the wire representation of one ad returned by the
// transparency archive API.
type ArchiveAd struct {
	ID                string             `json:"id"`
	PageID            string             `json:"page_id"`
	PageName          string             `json:"page_name"`
	CreationTime      string             `json:"ad_creation_time"`
	DeliveryStartTime string             `json:"ad_delivery_start_time"`
	DeliveryStopTime  string             `json:"ad_delivery_stop_time"`
	SnapshotURL       string             `json:"ad_snapshot_url"`
	TotalReach        Reach              `json:"eu_total_reach"`
	BeneficiaryPayers []BeneficiaryPayer `json:"beneficiary_payers"`
}

// IsActive reports whether the ad is still delivering. The archive omits the
// delivery stop time for running ads.
func (a *ArchiveAd) IsActive() bool {
	return a.DeliveryStopTime == ""
}

// Beneficiary returns the first disclosed beneficiary, if any.
func (a *ArchiveAd) Beneficiary() string {
	for _, bp := range a.BeneficiaryPayers {
		if bp.Beneficiary != "" {
			return bp.Beneficiary
		}
	}
	return ""
}

// Ad mirrors the `ads` PostgreSQL table schema. Only active ads are
// persisted; inactive ones contribute to page aggregates and are dropped.
type Ad struct {
	AdID          string
	PageID        string
	CreationTime  *time.Time
	DeliveryStart *time.Time
	DeliveryStop  *time.Time
	SnapshotURL   string
	Reach         int64
	IsActive      bool
	Beneficiary   string
	SearchTermID  *int64
}
