package cache_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/pokedex/cache"
)

func ExampleNewMemoryCache() {
	c := cache.NewMemoryCache()
	ctx := context.Background()

	_ = c.Set(ctx, "my-key", []byte("hello"), 5*time.Minute)

	value, ok := c.Get(ctx, "my-key")
	if ok {
		fmt.Println("Value:", string(value))
	}
	// Output:
	// Value: hello
}

func ExampleKeyer() {
	k := cache.NewKeyer("pokedex")

	fmt.Println(k.Key("species", "mewtwo"))
	fmt.Println(k.Pattern("translation"))
	// Output:
	// pokedex:species:mewtwo
	// pokedex:translation:*
}

func ExampleLoader() {
	c := cache.NewMemoryCache()
	loader, _ := cache.NewLoader[string](c, cache.LoaderConfig{
		Kind:   "greeting",
		Policy: cache.TTLPolicy(time.Hour),
	})
	ctx := context.Background()

	calls := 0
	fetch := func(context.Context) (string, error) {
		calls++
		return "hello", nil
	}

	first, _ := loader.Get(ctx, "pokedex:greeting:en", fetch)
	second, _ := loader.Get(ctx, "pokedex:greeting:en", fetch)
	fmt.Println(first, second, "fetches:", calls)
	// Output:
	// hello hello fetches: 1
}

func ExampleLoader_errorsNotCached() {
	c := cache.NewMemoryCache()
	loader, _ := cache.NewLoader[string](c, cache.LoaderConfig{Policy: cache.TTLPolicy(time.Hour)})
	ctx := context.Background()

	calls := 0
	fetch := func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("upstream unavailable")
		}
		return "recovered", nil
	}

	_, err := loader.Get(ctx, "pokedex:greeting:en", fetch)
	fmt.Println("first:", err)

	value, _ := loader.Get(ctx, "pokedex:greeting:en", fetch)
	fmt.Println("second:", value)
	// Output:
	// first: upstream unavailable
	// second: recovered
}

func ExampleMemoryCache_DeletePattern() {
	c := cache.NewMemoryCache()
	ctx := context.Background()

	_ = c.Set(ctx, "pokedex:species:mewtwo", []byte("a"), time.Hour)
	_ = c.Set(ctx, "pokedex:species:ditto", []byte("b"), time.Hour)
	_ = c.Set(ctx, "pokedex:translation:yoda:0123", []byte("c"), time.Hour)

	n, _ := c.DeletePattern(ctx, "pokedex:species:*")
	_, kept := c.Get(ctx, "pokedex:translation:yoda:0123")
	fmt.Println("removed:", n, "translation kept:", kept)
	// Output:
	// removed: 2 translation kept: true
}
