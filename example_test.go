package fpucache_test

import (
	"fmt"
	"log"

	"github.com/allegrex-jit/fpucache"
)

// This packs two VFPU lanes into one XMM register for a vector operation, then writes them back.
func Example() {
	config := fpucache.NewCacheConfig().WithArch(fpucache.ArchAMD64)
	a, err := fpucache.NewAssembler(config)
	if err != nil {
		log.Panicln(err)
	}
	c, err := fpucache.NewCache(a, config)
	if err != nil {
		log.Panicln(err)
	}

	c.PackRegisters([]uint8{0, 1}, fpucache.VectorSizePair, fpucache.MapDirty)
	c.Flush()

	for _, n := range a.Nodes() {
		fmt.Println(n)
	}

	// Output:
	// MOVSS [R14 + 0x80], X6
	// MOVSS [R14 + 0x90], X7
	// UNPCKLPS X7, X6
	// MOVSS X6, [R14 + 0x80]
	// SHUFPS X6, X6, 0xe1
	// MOVSS X6, [R14 + 0x90]
}
