// Package all wires every built-in document backend ("mongo", "badger",
// "redis") into the docstore factory. Import it for side effects only.
package all

import (
	_ "gpetl/internal/docstore/badger"
	_ "gpetl/internal/docstore/mongo"
	_ "gpetl/internal/docstore/redis"
)
