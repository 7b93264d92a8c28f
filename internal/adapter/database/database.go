package database

import (
	"fmt"

	"github.com/semmidev/dbkeep/internal/domain"
)

// New returns the dumper for engine. An empty engine means MySQL.
func New(engine domain.Engine) (domain.Dumper, error) {
	switch engine {
	case "", domain.EngineMySQL:
		return NewMySQL(""), nil
	case domain.EnginePostgreSQL:
		return NewPostgreSQL(""), nil
	default:
		return nil, fmt.Errorf("unsupported database engine: %s", engine)
	}
}
