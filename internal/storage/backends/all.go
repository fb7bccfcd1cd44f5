// Package backends imports every storage adapter so they register with the
// storage registry. Import it for side effects from the application entry point.
package backends

import (
	_ "roadwiki/app/internal/storage/badgerstore"
	_ "roadwiki/app/internal/storage/gormstore"
	_ "roadwiki/app/internal/storage/mongostore"
)
