package postgres

import (
	"time"

	"github.com/xraph/grove"
)

type resourceModel struct {
	grove.BaseModel `grove:"table:bits_resources"`

	Name      string    `grove:"name,pk"`
	Revision  int64     `grove:"revision"`
	Payload   string    `grove:"payload"`
	UpdatedAt time.Time `grove:"updated_at"`
}
