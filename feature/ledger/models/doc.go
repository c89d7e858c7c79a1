// Package models defines the ledger entities persisted by GORM.
//
// Reservations belong to properties, properties belong to owners, and tax jurisdictions
// are attached to properties through the property_tax_jurisdictions join table.
// ReconciliationSnapshot and SyncLog are append-only histories.
//
// The payout formula lives here so the sync engine and tests share one definition:
//
//	net    = total - tax - hostServiceFee
//	fee    = net * percent / 100   (reservation -> property -> owner -> default 20%)
//	payout = net - fee
package models
