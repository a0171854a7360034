package postgres

import (
	"github.com/jinzhu/gorm"

	C "revtrace/config"
)

// Postgres Store implementation on postgres via gorm. Stateless; the shared
// *gorm.DB comes from config services.
type Postgres struct{}

func (store *Postgres) db() *gorm.DB {
	return C.GetServices().Db
}
