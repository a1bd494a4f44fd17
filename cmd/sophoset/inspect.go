package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/c-bata/go-prompt"
	"golang.org/x/term"

	"github.com/csv610/sophoset/internal/record"
	"github.com/csv610/sophoset/internal/storage/config"
	"github.com/csv610/sophoset/internal/storage/kv"
)

// runInspect opens the record store read-eval loop. On a terminal it
// uses go-prompt with key completion; when stdin is a pipe it falls
// back to a plain line scanner so the command stays scriptable.
func runInspect(cfg *config.Config) error {
	store, err := kv.Open(cfg.StoreDir(), kv.Options{SyncWrites: cfg.Store.SyncWrites})
	if err != nil {
		return err
	}
	defer store.Close()

	insp := &inspector{store: store}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Println("sophoset record store inspector. Type 'help' for commands.")
		p := prompt.New(
			insp.execute,
			insp.complete,
			prompt.OptionPrefix("> "),
			prompt.OptionTitle("sophoset inspect"),
		)
		p.Run()
		return nil
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if insp.done {
			break
		}
		insp.execute(scanner.Text())
	}
	return scanner.Err()
}

type inspector struct {
	store *kv.Store
	done  bool
}

func (i *inspector) execute(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	switch cmd := fields[0]; cmd {
	case "list":
		prefix := ""
		if len(fields) > 1 {
			prefix = fields[1]
		}
		i.list(prefix)
	case "get":
		if len(fields) != 2 {
			fmt.Println("usage: get <subset/split/index>")
			return
		}
		i.get(fields[1])
	case "has":
		if len(fields) != 2 {
			fmt.Println("usage: has <subset/split/index>")
			return
		}
		ok, err := i.store.Has(fields[1])
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		fmt.Println(ok)
	case "count":
		n, err := i.store.Count()
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		fmt.Println(n)
	case "help":
		fmt.Println("commands:")
		fmt.Println("  list [prefix]   list stored keys")
		fmt.Println("  get <key>       show one record")
		fmt.Println("  has <key>       check if a key exists")
		fmt.Println("  count           number of stored records")
		fmt.Println("  exit            leave the inspector")
	case "exit", "quit":
		i.done = true
		i.store.Close()
		os.Exit(0)
	default:
		fmt.Printf("unknown command %q, try 'help'\n", cmd)
	}
}

func (i *inspector) list(prefix string) {
	keys, err := i.store.Keys()
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	shown := 0
	for _, key := range keys {
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			continue
		}
		fmt.Println(key)
		shown++
	}
	fmt.Printf("%d keys\n", shown)
}

func (i *inspector) get(key string) {
	rec, err := i.store.Get(key)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	printRecord(rec)
}

func printRecord(rec record.Record) {
	fmt.Printf("key:      %s\n", rec.Key)
	if rec.Context != "" {
		fmt.Printf("context:  %s\n", rec.Context)
	}
	fmt.Printf("question: %s\n", rec.Question)
	for _, opt := range rec.Options {
		fmt.Printf("  %s) %s\n", opt.Label, opt.Text)
	}
	fmt.Printf("answer:   %s\n", rec.Answer)
	if rec.Explanation != "" {
		fmt.Printf("why:      %s\n", rec.Explanation)
	}
	for _, img := range rec.Images {
		fmt.Printf("image:    %s\n", img)
	}
}

// complete suggests commands and, for get/has, stored keys.
func (i *inspector) complete(d prompt.Document) []prompt.Suggest {
	text := d.TextBeforeCursor()
	fields := strings.Fields(text)

	if len(fields) == 0 || (len(fields) == 1 && !strings.HasSuffix(text, " ")) {
		commands := []prompt.Suggest{
			{Text: "list", Description: "list stored keys"},
			{Text: "get", Description: "show one record"},
			{Text: "has", Description: "check if a key exists"},
			{Text: "count", Description: "number of stored records"},
			{Text: "help", Description: "show commands"},
			{Text: "exit", Description: "leave the inspector"},
		}
		return prompt.FilterHasPrefix(commands, d.GetWordBeforeCursor(), true)
	}

	if fields[0] == "get" || fields[0] == "has" {
		keys, err := i.store.Keys()
		if err != nil {
			return nil
		}
		suggestions := make([]prompt.Suggest, 0, len(keys))
		for _, key := range keys {
			suggestions = append(suggestions, prompt.Suggest{Text: key})
		}
		return prompt.FilterHasPrefix(suggestions, d.GetWordBeforeCursor(), true)
	}

	return nil
}
