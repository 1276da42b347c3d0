package main

import "fmt"

// InfoCmd prints the resolved agent's status, tool catalog, and session
// location without starting a turn, useful for confirming a config and
// agent-spec combination resolves the way the caller expects before
// handing it real work.
type InfoCmd struct{}

func (c *InfoCmd) Run(cli *CLI) error {
	env, err := build(cli)
	if err != nil {
		return err
	}
	defer env.Close()

	status := env.soul.Status()
	fmt.Printf("agent: %s (%s)\n", env.soul.Name(), env.soul.ModelName())
	fmt.Printf("session: %s\n", env.session.Dir())
	fmt.Printf("context usage: %.1f%%\n", status.ContextUsage*100)
	fmt.Printf("yolo: %v\n", status.YOLOEnabled)

	fmt.Println("tools:")
	for _, td := range env.soul.Toolset().List() {
		fmt.Printf("  %-30s %s\n", td.Name, td.Description)
	}

	names := env.soul.Labor().SortedNames()
	if len(names) > 0 {
		fmt.Println("subagents:")
		for _, name := range names {
			fmt.Printf("  %s\n", name)
		}
	}

	return nil
}
