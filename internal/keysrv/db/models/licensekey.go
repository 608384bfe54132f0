package models

import "time"

/*
   Column    |    Type     | Nullable |  Default
-------------+-------------+----------+-----------
 id          | bigserial   | not null |
 key_value   | text        | not null |
 plan_type   | text        | not null |
 created_at  | timestamptz | not null |
 expires_at  | timestamptz |          |
 is_active   | boolean     | not null | true
Indexes:
    "license_keys_pkey" PRIMARY KEY, btree (id)
    "idx_license_keys_key_value" UNIQUE, btree (key_value)

SQLite stores the same columns with INTEGER/TEXT/DATETIME/BOOLEAN affinities.
*/

type LicenseKey struct {
	ID        int64      `db:"id"`
	KeyValue  string     `db:"key_value"`
	PlanType  string     `db:"plan_type"`
	CreatedAt time.Time  `db:"created_at"`
	ExpiresAt *time.Time `db:"expires_at"`
	IsActive  bool       `db:"is_active"`
}
