// Command ganeshdemo walks the deferred surface-proxy lifecycle against a
// deviceless allocator: keyed creation, lookup, lazy instantiation,
// approximate-fit reuse, and atlas packing.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/gogpu/ganesh"
	"github.com/gogpu/ganesh/atlas"
	"github.com/gogpu/ganesh/resource"
	"github.com/gogpu/gputypes"
)

func main() {
	var (
		budget  = flag.Int64("budget", 64, "cache budget in MB")
		verbose = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	if *verbose {
		ganesh.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	cache, err := resource.NewCache(resource.CacheConfig{MaxBytes: *budget * 1024 * 1024})
	if err != nil {
		log.Fatalf("create cache: %v", err)
	}
	defer cache.Close()

	// Nil device and queue: every surface is logical. The proxy protocol
	// is identical either way.
	alloc := resource.NewProvider(nil, nil, cache)
	pp := ganesh.NewProxyProvider(alloc, cache, &ganesh.SingleOwner{})

	demoKeyedLookup(pp)
	demoLazyInstantiation(pp, alloc)
	demoApproxReuse(pp, alloc)
	demoAtlas(pp, alloc)

	log.Printf("provider: %s", pp.Stats())
	log.Printf("cache:    %s", cache.Stats())
}

// demoKeyedLookup shows one key resolving to at most one live proxy.
func demoKeyedLookup(pp *ganesh.ProxyProvider) {
	domain := ganesh.NewDomain()
	key := ganesh.NewKeyBuilder(domain).AddString("background").Build()

	desc := ganesh.SurfaceDesc{
		Width: 256, Height: 256,
		Format:      gputypes.TextureFormatRGBA8Unorm,
		SampleCount: 1,
		Fit:         ganesh.BackingFitExact,
		Budgeted:    ganesh.BudgetedYes,
	}
	proxy, err := pp.CreateProxy(desc, ganesh.OriginTopLeft, false)
	if err != nil {
		log.Fatalf("create proxy: %v", err)
	}
	defer proxy.Unref()

	if err := pp.AssignUniqueKey(key, proxy); err != nil {
		log.Fatalf("assign key: %v", err)
	}

	found := pp.FindProxyByUniqueKey(key, ganesh.OriginTopLeft)
	if found == nil {
		log.Fatal("keyed proxy not found")
	}
	found.Unref()
	log.Printf("keyed lookup: %d proxy in table", pp.NumUniqueKeyProxies())
}

// demoLazyInstantiation defers allocation to an explicit flush point.
func demoLazyInstantiation(pp *ganesh.ProxyProvider, alloc ganesh.Allocator) {
	desc := ganesh.SurfaceDesc{
		Width: 512, Height: 512,
		Format:      gputypes.TextureFormatRGBA8Unorm,
		SampleCount: 1,
		Fit:         ganesh.BackingFitExact,
		Budgeted:    ganesh.BudgetedYes,
	}
	calls := 0
	proxy, err := pp.CreateLazyProxy(func(a ganesh.Allocator) (*ganesh.Surface, error) {
		if a == nil {
			return nil, nil
		}
		calls++
		return a.CreateTexture(desc, false, "lazy_demo")
	}, desc, ganesh.OriginTopLeft, false, ganesh.LazySingleUse)
	if err != nil {
		log.Fatalf("create lazy proxy: %v", err)
	}
	defer proxy.Unref()

	log.Printf("lazy proxy before flush: instantiated=%v", proxy.IsInstantiated())
	if err := proxy.Instantiate(alloc); err != nil {
		log.Fatalf("instantiate: %v", err)
	}
	log.Printf("lazy proxy after flush:  instantiated=%v callback_calls=%d", proxy.IsInstantiated(), calls)
}

// demoApproxReuse shows approximate-fit quantization and the exactness
// predicate.
func demoApproxReuse(pp *ganesh.ProxyProvider, alloc ganesh.Allocator) {
	desc := ganesh.SurfaceDesc{
		Width: 100, Height: 100,
		Format:      gputypes.TextureFormatRGBA8Unorm,
		SampleCount: 1,
		Fit:         ganesh.BackingFitApprox,
		Budgeted:    ganesh.BudgetedYes,
	}
	proxy, err := pp.CreateProxy(desc, ganesh.OriginTopLeft, false)
	if err != nil {
		log.Fatalf("create approx proxy: %v", err)
	}
	defer proxy.Unref()

	if err := proxy.Instantiate(alloc); err != nil {
		log.Fatalf("instantiate approx: %v", err)
	}
	log.Printf("approx fit: requested 100x100, backing %dx%d, exact=%v",
		proxy.BackingWidth(), proxy.BackingHeight(), proxy.IsFunctionallyExact())
}

// demoAtlas packs rectangles into a fully-lazy atlas and materializes it.
func demoAtlas(pp *ganesh.ProxyProvider, alloc ganesh.Allocator) {
	specs := atlas.DefaultSpecs()
	specs.ApproxNumPixels = 128 * 128
	a, err := atlas.New(specs, pp, gputypes.TextureFormatR8Unorm, ganesh.OriginTopLeft)
	if err != nil {
		log.Fatalf("create atlas: %v", err)
	}
	defer a.Release()

	placed := 0
	for i := 0; i < 200; i++ {
		if _, _, ok := a.AddRect(48, 32); ok {
			placed++
		}
	}
	if err := a.Instantiate(alloc); err != nil {
		log.Fatalf("instantiate atlas: %v", err)
	}
	w, h := a.DrawBounds()
	log.Printf("atlas: placed %d rects, final %dx%d, draw bounds %dx%d, utilization %.0f%%",
		placed, a.Width(), a.Height(), w, h, a.Utilization()*100)
}
