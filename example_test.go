package weft_test

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/pkg/image"
)

// ExampleNew runs the receive, add and send process from an image on the
// default in-memory space.
func ExampleNew() {
	ctx := context.Background()

	engine, err := weft.New()
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Close()

	img, err := image.Load(strings.NewReader(`
processes:
  - id: "@1:adder"
    code: |
      push @0:c5
      push @0:c4
      ask
      push 2
      add
      tell
values:
  - channel: "@0:c4"
    value: 3
`))
	if err != nil {
		log.Fatal(err)
	}
	if err := engine.Deposit(ctx, img); err != nil {
		log.Fatal(err)
	}

	summary, err := engine.Run(ctx)
	if err != nil {
		log.Fatal(err)
	}

	v, err := engine.Space().Ask(ctx, 0, "@0:c5")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(summary.Completed, v)
	// Output: 1 5
}
