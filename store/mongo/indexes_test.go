package mongo

import (
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestMigrationIndexesCoverUniqueKeys(t *testing.T) {
	indexes := migrationIndexes()

	tests := []struct {
		col  string
		keys []string
	}{
		{colMerchants, []string{"address"}},
		{colTransactions, []string{"account_id", "seq"}},
		{colAllowances, []string{"owner", "currency"}},
		{colCurrencies, []string{"currency"}},
		{colBenefits, []string{"account_id", "idx"}},
		{colBookings, []string{"account_id", "event_id", "entrance_number"}},
		{colPairs, []string{"account_id", "event_id"}},
		{colNotifications, []string{"seq"}},
	}
	for _, tt := range tests {
		t.Run(tt.col, func(t *testing.T) {
			for _, m := range indexes[tt.col] {
				if m.Options == nil || !sameKeys(m.Keys.(bson.D), tt.keys) {
					continue
				}
				return
			}
			t.Errorf("no unique index on %v", tt.keys)
		})
	}
}

func sameKeys(d bson.D, keys []string) bool {
	if len(d) != len(keys) {
		return false
	}
	for i, e := range d {
		if e.Key != keys[i] {
			return false
		}
	}
	return true
}
