// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// BeforeCreate assigns the primary key in Go so SQLite and Postgres behave the same.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// StringMap stores item attributes as a JSON object.
type StringMap map[string]string

func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *StringMap) Scan(value interface{}) error {
	if value == nil {
		*m = StringMap{}
		return nil
	}
	return json.Unmarshal(scanBytes(value), m)
}

// AddressColumn persists a nullable ShippingAddress as JSON.
type AddressColumn struct {
	Address *ShippingAddress
}

func (a AddressColumn) Value() (driver.Value, error) {
	if a.Address == nil {
		return nil, nil
	}
	b, err := json.Marshal(a.Address)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *AddressColumn) Scan(value interface{}) error {
	if value == nil {
		a.Address = nil
		return nil
	}
	var addr ShippingAddress
	if err := json.Unmarshal(scanBytes(value), &addr); err != nil {
		return err
	}
	a.Address = &addr
	return nil
}

func scanBytes(value interface{}) []byte {
	switch v := value.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return nil
	}
}
