package model

import (
	"time"
)

const (
	TouchpointTypeClick = "click"
	TouchpointTypeView  = "view"

	// ChannelDirect Touchpoints without a referring source. Skipped by the
	// last_non_direct model.
	ChannelDirect = "direct"
)

// Touchpoint One marketing interaction (click or view) tied to a
// visitor/session/customer. Created by ingestion, immutable once recorded.
type Touchpoint struct {
	ID        string `gorm:"primary_key:true" json:"id"`
	ProjectID int64  `gorm:"primary_key:true" json:"project_id"`

	// Identity keys. VisitorID is always set, the rest are optional and
	// filled as identification progresses.
	VisitorID  string `json:"visitor_id"`
	SessionID  string `json:"session_id"`
	CustomerID string `json:"customer_id"`

	Channel  string `json:"channel"`
	Source   string `json:"source"`
	Medium   string `json:"medium"`
	Campaign string `json:"campaign"`
	Content  string `json:"content"`
	Term     string `json:"term"`

	// Ad platform specific ids, set when the touchpoint came off a paid click.
	Platform   string `json:"platform"`
	CampaignID string `json:"campaign_id"`
	AdsetID    string `json:"adset_id"`
	AdID       string `json:"ad_id"`
	ClickID    string `json:"click_id"`

	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// IdentityKeys The linking keys of one resolved identity. Identity
// resolution itself happens upstream; the engine only consumes the mapping.
type IdentityKeys struct {
	VisitorID  string `json:"visitor_id"`
	SessionID  string `json:"session_id"`
	CustomerID string `json:"customer_id"`
}

// IdentityKeysForConversion Returns the linking keys known on a conversion.
func IdentityKeysForConversion(conversion *Conversion) IdentityKeys {
	return IdentityKeys{
		VisitorID:  conversion.VisitorID,
		SessionID:  conversion.SessionID,
		CustomerID: conversion.CustomerID,
	}
}
