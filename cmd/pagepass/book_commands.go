package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pagepass/internal/api"
	"pagepass/internal/ipc"
)

func newBookCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newBooksCommand(ctx),
		newAddCommand(ctx),
		newShowCommand(ctx),
		newRemoveCommand(ctx),
		newRecallCommand(ctx),
		newGiftCommand(ctx),
		newShelfCommand(ctx),
	}
}

func newBooksCommand(ctx *commandContext) *cobra.Command {
	var owner, holder string
	var statuses []string
	var mine, held, asJSON bool

	cmd := &cobra.Command{
		Use:   "books",
		Short: "List books",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ipc.BookListRequest{OwnerID: owner, HolderID: holder, Statuses: statuses}
			if mine || held {
				user, err := ctx.user()
				if err != nil {
					return err
				}
				if mine {
					req.OwnerID = user
				}
				if held {
					req.HolderID = user
				}
			}
			return ctx.withClient(func(client *ipc.Client) error {
				books, err := client.Books(req)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.ListResponse[api.Book]{Items: books})
				}
				if len(books) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No books found")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(bookColumns, buildBookRows(books, time.Now()), shouldColorize(cmd.OutOrStdout())))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Only books owned by this user")
	cmd.Flags().StringVar(&holder, "holder", "", "Only books held by this user")
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (available, borrowed, in_transit, off_shelf)")
	cmd.Flags().BoolVar(&mine, "mine", false, "Only books you own")
	cmd.Flags().BoolVar(&held, "held", false, "Only books you are holding")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var author string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a book you own to your shelf",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.Join(args, " ")
			return ctx.withUserClient(func(client *ipc.Client, user string) error {
				book, err := client.AddBook(user, title, author)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added book %d: %s\n", book.ID, book.Title)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&author, "author", "a", "", "Book author")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <book-id>",
		Short: "Show a book with its waitlist and ownership chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBookID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				book, err := client.Book(id)
				if err != nil {
					return err
				}
				queue, err := client.Queue(id)
				if err != nil {
					return err
				}
				owners, err := client.Ownership(id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, map[string]any{"book": book, "queue": queue, "ownership": owners})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%d  %s\n", book.ID, book.Title)
				if book.Author != "" {
					fmt.Fprintf(out, "    by %s\n", book.Author)
				}
				fmt.Fprintf(out, "Owner:   %s\n", book.OwnerID)
				fmt.Fprintf(out, "Status:  %s\n", book.Status)
				if book.HolderID != "" {
					fmt.Fprintf(out, "Holder:  %s (since %s, due %s)\n", book.HolderID, formatDisplayTime(book.HolderSince), formatDisplayDate(book.DueDate))
				}
				fmt.Fprintf(out, "Gift:    %s\n", yesNo(book.GiftOnBorrow))
				fmt.Fprintf(out, "Recall:  %s\n", yesNo(book.OwnerRecallActive))
				if len(queue) > 0 {
					fmt.Fprintln(out, "\nWaitlist")
					fmt.Fprint(out, renderTable(queueColumns, buildQueueRows(queue), false))
				}
				if len(owners) > 0 {
					fmt.Fprintln(out, "\nOwnership")
					fmt.Fprint(out, renderTable(ownershipColumns, buildOwnershipRows(owners), false))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

// bookAction builds a command that applies one owner or holder action to a book.
func bookAction(ctx *commandContext, use, short string, run func(cmd *cobra.Command, client *ipc.Client, user string, bookID int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <book-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBookID(args[0])
			if err != nil {
				return err
			}
			return ctx.withUserClient(func(client *ipc.Client, user string) error {
				return run(cmd, client, user, id)
			})
		},
	}
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return bookAction(ctx, "remove", "Delete a book you own that is on your shelf",
		func(cmd *cobra.Command, client *ipc.Client, user string, bookID int64) error {
			if err := client.RemoveBook(user, bookID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed book %d\n", bookID)
			return nil
		})
}

func newRecallCommand(ctx *commandContext) *cobra.Command {
	return bookAction(ctx, "recall", "Ask for a lent book back ahead of the waitlist",
		func(cmd *cobra.Command, client *ipc.Client, user string, bookID int64) error {
			book, err := client.Recall(user, bookID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recall requested; %s will return book %d to you next\n", book.HolderID, book.ID)
			return nil
		})
}

func newGiftCommand(ctx *commandContext) *cobra.Command {
	return bookAction(ctx, "gift", "Toggle whether the next borrower keeps the book",
		func(cmd *cobra.Command, client *ipc.Client, user string, bookID int64) error {
			flag, err := client.ToggleGift(user, bookID)
			if err != nil {
				return err
			}
			if flag.GiftOnBorrow {
				fmt.Fprintf(cmd.OutOrStdout(), "Book %d will be gifted to its next borrower\n", flag.BookID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Book %d will be lent, not gifted\n", flag.BookID)
			}
			return nil
		})
}

func newShelfCommand(ctx *commandContext) *cobra.Command {
	return bookAction(ctx, "shelf", "Take a book off your shelf or put it back",
		func(cmd *cobra.Command, client *ipc.Client, user string, bookID int64) error {
			book, err := client.ToggleShelf(user, bookID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case book.Status == "off_shelf":
				fmt.Fprintf(out, "Book %d is off the shelf\n", book.ID)
			case book.OffShelfOnReturn:
				fmt.Fprintf(out, "Book %d will come off the shelf when it is returned\n", book.ID)
			default:
				fmt.Fprintf(out, "Book %d is on the shelf (%s)\n", book.ID, book.Status)
			}
			return nil
		})
}
