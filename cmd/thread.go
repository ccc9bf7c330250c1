package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/voiceqa/internal/thread"
	"github.com/voiceqa/pkg/models"
)

// ThreadCommand returns the CLI command for working with comment threads
// against a running API server.
func ThreadCommand() *cli.Command {
	connFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Usage:   "Base URL of the VoiceQA API server",
			Value:   "http://localhost:8920",
			EnvVars: []string{"VOICEQA_SERVER"},
		},
		&cli.StringFlag{
			Name:    "token",
			Usage:   "Bearer access token",
			EnvVars: []string{"VOICEQA_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "user",
			Usage:   "Your user ID, for local edit checks",
			EnvVars: []string{"VOICEQA_USER_ID"},
		},
		&cli.StringFlag{Name: "entity-type", Usage: "Entity type the thread is attached to", Required: true},
		&cli.StringFlag{Name: "entity-id", Usage: "Entity ID the thread is attached to", Required: true},
	}

	return &cli.Command{
		Name:  "thread",
		Usage: "View and update a comment thread",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print the thread as an indented tree",
				Flags:  connFlags,
				Action: runThreadShow,
			},
			{
				Name:  "post",
				Usage: "Post a comment or a reply",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "Comment text", Required: true},
					&cli.StringFlag{Name: "parent", Usage: "Parent comment ID for a reply"},
					&cli.StringSliceFlag{Name: "mention", Usage: "Mention a user by name or email prefix (repeatable)"},
				}, connFlags...),
				Action: runThreadPost,
			},
			{
				Name:  "edit",
				Usage: "Edit one of your comments",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Comment ID", Required: true},
					&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "New comment text", Required: true},
				}, connFlags...),
				Action: runThreadEdit,
			},
			{
				Name:  "delete",
				Usage: "Delete one of your comments",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Comment ID", Required: true},
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Skip the confirmation prompt"},
				}, connFlags...),
				Action: runThreadDelete,
			},
			{
				Name:  "suggest",
				Usage: "Look up mention suggestions",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Name or email prefix", Required: true},
				}, connFlags...),
				Action: runThreadSuggest,
			},
		},
	}
}

// terminalConfirmer satisfies the thread controller's confirmation hook with
// a stdin y/N prompt. autoYes makes it confirm without asking.
type terminalConfirmer struct {
	autoYes bool
}

func (t *terminalConfirmer) RequestConfirm(req thread.ConfirmRequest) {
	if t.autoYes {
		req.OnConfirm()
		return
	}

	fmt.Printf("%s\n%s [y/N]: ", req.Title, req.Message)
	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	if strings.EqualFold(strings.TrimSpace(answer), "y") {
		req.OnConfirm()
	} else {
		fmt.Println("Cancelled.")
	}
}

func newThreadSession(c *cli.Context, autoYes bool) (*thread.Controller, *thread.RESTClient) {
	client := thread.NewRESTClient(c.String("server"), c.String("token"))
	viewer := models.User{ID: c.String("user")}
	controller := thread.NewController(client, &terminalConfirmer{autoYes: autoYes}, viewer, c.String("entity-type"), c.String("entity-id"))
	return controller, client
}

func runThreadShow(c *cli.Context) error {
	controller, _ := newThreadSession(c, false)
	defer controller.Close()

	if err := controller.Load(c.Context); err != nil {
		return err
	}

	state := controller.State()
	if len(state.Comments) == 0 {
		fmt.Println("No comments yet.")
		return nil
	}

	thread.Walk(state.Comments, func(comment *models.Comment, depth int) {
		indent := strings.Repeat("  ", depth)
		edited := ""
		if comment.IsEdited {
			edited = " (edited)"
		}
		fmt.Printf("%s[%s] %s%s - %s\n", indent, comment.ID, comment.AuthorName, edited, comment.CreatedAt.Format("2006-01-02 15:04"))
		for _, line := range strings.Split(comment.Content, "\n") {
			fmt.Printf("%s  %s\n", indent, line)
		}
	})
	return nil
}

func runThreadPost(c *cli.Context) error {
	controller, client := newThreadSession(c, false)
	defer controller.Close()

	mentions, err := resolveMentions(c, client)
	if err != nil {
		return err
	}

	var parent *string
	if p := c.String("parent"); p != "" {
		parent = &p
	}

	if err := controller.Create(c.Context, c.String("message"), mentions, parent); err != nil {
		return fmt.Errorf("failed to post comment: %w", err)
	}
	fmt.Println("Comment posted.")
	return nil
}

func runThreadEdit(c *cli.Context) error {
	controller, _ := newThreadSession(c, false)
	defer controller.Close()

	if err := controller.Update(c.Context, c.String("id"), c.String("message"), nil); err != nil {
		return fmt.Errorf("failed to edit comment: %w", err)
	}
	fmt.Println("Comment updated.")
	return nil
}

func runThreadDelete(c *cli.Context) error {
	controller, _ := newThreadSession(c, c.Bool("yes"))
	defer controller.Close()

	controller.Delete(c.Context, c.String("id"))

	if delErr := controller.State().DeleteError; delErr != "" {
		return fmt.Errorf("%s", delErr)
	}
	return nil
}

func runThreadSuggest(c *cli.Context) error {
	_, client := newThreadSession(c, false)

	suggestions, err := client.SuggestMentions(c.Context, c.String("query"))
	if err != nil {
		return fmt.Errorf("failed to fetch suggestions: %w", err)
	}
	if len(suggestions) == 0 {
		fmt.Println("No matches.")
		return nil
	}
	for _, s := range suggestions {
		fmt.Printf("%s\t%s\t%s\n", s.UserID, s.DisplayName, s.Email)
	}
	return nil
}

// resolveMentions turns --mention prefixes into concrete users via the
// suggestion endpoint, taking the first match for each.
func resolveMentions(c *cli.Context, client *thread.RESTClient) ([]models.Mention, error) {
	queries := c.StringSlice("mention")
	if len(queries) == 0 {
		return nil, nil
	}

	mentions := make([]models.Mention, 0, len(queries))
	for _, query := range queries {
		suggestions, err := client.SuggestMentions(c.Context, query)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve mention %q: %w", query, err)
		}
		if len(suggestions) == 0 {
			return nil, fmt.Errorf("no user matches mention %q", query)
		}
		mentions = append(mentions, suggestions[0].ToMention())
	}
	return mentions, nil
}
