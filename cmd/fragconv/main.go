// fragconv converts an object fragment (JSON or YAML) to canonical JSON and
// reports what the loader would see: entity count, digest and warnings.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kiwiworld/objectd/internal/component"
	"github.com/kiwiworld/objectd/internal/core/ecs"
	"github.com/kiwiworld/objectd/internal/object"
)

func main() {
	args := os.Args[1:]
	strict := len(args) > 0 && args[0] == "-strict"
	if strict {
		args = args[1:]
	}
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintln(os.Stderr, "Usage: fragconv [-strict] <input.(json|yaml)> [output.json]")
		os.Exit(1)
	}

	if err := convert(args, strict); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func convert(args []string, strict bool) error {
	in := args[0]
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}

	var keep object.KindFilter
	if strict {
		catalog := ecs.NewCatalog()
		component.Register(catalog)
		keep = catalog.Known
	}
	frag, err := object.Decode(data, strings.ToLower(filepath.Ext(in)), keep)
	if err != nil {
		return fmt.Errorf("decode %s: %w", in, err)
	}
	for _, w := range frag.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	out, err := object.Encode(frag.Entities)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	fmt.Fprintf(os.Stderr, "%s: %d entities, digest %s\n", in, frag.Len(), frag.Digest)
	if len(args) == 1 {
		_, err = os.Stdout.Write(append(out, '\n'))
		return err
	}
	if err := os.WriteFile(args[1], out, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Written %s\n", args[1])
	return nil
}
