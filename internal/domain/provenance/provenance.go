// Package provenance implements the auto/manual field model for invoice
// fields that can be either extracted automatically or overridden by hand.
//
// Each tracked field carries three pieces of state: the visible value, a
// shadow value holding the latest automatic extraction, and a source marker.
// Sync passes always refresh the shadow value, but only touch the visible
// value while the source is still "auto". A manual override freezes the
// visible value until the user resets the field, at which point the shadow
// value is promoted back.
package provenance

import (
	"github.com/shopspring/decimal"
)

// Source classifies where a field's visible value came from.
type Source string

const (
	// SourceAuto means the visible value mirrors the latest extraction.
	SourceAuto Source = "auto"
	// SourceManual means a user overrode the value; sync must not touch it.
	SourceManual Source = "manual"
)

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	return s == SourceAuto || s == SourceManual
}

// StringField is a provenance-tracked string field (e.g. vendor).
type StringField struct {
	Value  *string
	Shadow *string
	Source Source
}

// AmountField is a provenance-tracked monetary field.
type AmountField struct {
	Value  decimal.NullDecimal
	Shadow decimal.NullDecimal
	Source Source
}

// ApplyExtraction merges a fresh extraction result into the field.
// The shadow value is always replaced; the visible value only while the
// source is auto. Returns the updated field and whether any state changed.
func (f StringField) ApplyExtraction(extracted *string) (StringField, bool) {
	changed := !stringPtrEqual(f.Shadow, extracted)
	f.Shadow = copyStringPtr(extracted)
	if f.Source != SourceManual {
		if !stringPtrEqual(f.Value, extracted) {
			changed = true
		}
		f.Value = copyStringPtr(extracted)
	}
	return f, changed
}

// ApplyManualEdit writes a user-supplied value. The source flips to manual
// only when the new value actually differs from the current one.
func (f StringField) ApplyManualEdit(value *string) StringField {
	if !stringPtrEqual(f.Value, value) {
		f.Source = SourceManual
	}
	f.Value = copyStringPtr(value)
	return f
}

// Reset returns the field to automatic tracking, promoting the shadow value
// into the visible slot without re-extracting.
func (f StringField) Reset() StringField {
	f.Source = SourceAuto
	f.Value = copyStringPtr(f.Shadow)
	return f
}

// ApplyExtraction merges a fresh extraction result into the field.
func (f AmountField) ApplyExtraction(extracted decimal.NullDecimal) (AmountField, bool) {
	changed := !nullDecimalEqual(f.Shadow, extracted)
	f.Shadow = extracted
	if f.Source != SourceManual {
		if !nullDecimalEqual(f.Value, extracted) {
			changed = true
		}
		f.Value = extracted
	}
	return f, changed
}

// ApplyManualEdit writes a user-supplied amount, flipping the source to
// manual when it differs from the stored one.
func (f AmountField) ApplyManualEdit(value decimal.NullDecimal) AmountField {
	if !nullDecimalEqual(f.Value, value) {
		f.Source = SourceManual
	}
	f.Value = value
	return f
}

// Reset returns the field to automatic tracking and restores the shadow value.
func (f AmountField) Reset() AmountField {
	f.Source = SourceAuto
	f.Value = f.Shadow
	return f
}

// DeriveNeedsReview computes the needs_review flag after a reconciliation
// pass. A manual override on either field means a human already vetted the
// invoice, so sync never re-flags it. Otherwise the extractor's own signal
// decides, and an absent signal (nil) is treated as "needs review" — the
// safe default is to surface uncertainty.
func DeriveNeedsReview(vendorSource, amountSource Source, extractorSignal *bool) bool {
	if vendorSource == SourceManual || amountSource == SourceManual {
		return false
	}
	if extractorSignal == nil {
		return true
	}
	return *extractorSignal
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// nullDecimalEqual compares by numeric value, so re-extracting "123.450"
// over a stored "123.45" is not a change.
func nullDecimalEqual(a, b decimal.NullDecimal) bool {
	if !a.Valid || !b.Valid {
		return a.Valid == b.Valid
	}
	return a.Decimal.Equal(b.Decimal)
}
