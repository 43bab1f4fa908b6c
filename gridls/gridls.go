// gridls lists the members of a dataset collection, optionally filtered,
// and renders the catalog as text or JSON.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/CloudyKit/jet/v6"
	"golang.org/x/net/context"

	"github.com/nci/gridset/collection"
)

var (
	rootDir        = flag.String("root", ".", "root directory of the collection")
	filter         = flag.String("filter", "", `member filter expression, e.g. type == "grid" && path =~ "sst"`)
	outputFormat   = flag.String("format", "text", "output format: text or json")
	followSymlinks = flag.Bool("follow_symlink", false, "follow symbolic links while crawling")
	verbose        = flag.Bool("verbose", false, "verbose logging")
)

const catalogTemplate = `{{ name }} ({{ count }} members)
{{- range member := members }}
{{ member.Kind }}	{{ member.ID }}	{{ member.Name }}
{{- end }}
`

func ensure(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	flag.Parse()

	var opts []collection.TreeOption
	if *followSymlinks {
		opts = append(opts, collection.FollowSymlinks())
	}
	if *verbose {
		opts = append(opts, collection.Verbose())
	}

	tree, err := collection.NewDirectoryTree(*rootDir, opts...)
	ensure(err)

	members, err := tree.List(context.Background(), *filter)
	ensure(err)

	if *outputFormat == "json" {
		out, err := json.Marshal(members)
		ensure(err)
		_, err = os.Stdout.Write(out)
		ensure(err)
		return
	}

	loader := jet.NewInMemLoader()
	loader.Set("catalog", catalogTemplate)
	view := jet.NewSet(loader)
	template, err := view.GetTemplate("catalog")
	ensure(err)

	vars := make(jet.VarMap)
	vars.Set("name", tree.DisplayName())
	vars.Set("count", len(members))
	vars.Set("members", members)
	ensure(template.Execute(os.Stdout, vars, nil))
}
