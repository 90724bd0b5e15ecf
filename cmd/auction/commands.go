package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/auctionapi"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/chrome"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/config"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/forms"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/listings"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/pages"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	flagEmail       = "email"
	flagPassword    = "password"
	flagConfirm     = "confirm-password"
	flagName        = "name"
	flagQuery       = "query"
	flagSort        = "sort"
	flagPage        = "page"
	flagActive      = "active"
	flagTitle       = "title"
	flagDescription = "description"
	flagEndsAt      = "ends-at"
	flagTags        = "tags"
	flagMedia       = "media"
	flagAlt         = "alt"
	flagLimit       = "limit"
)

// errRejected is returned when a page reports a failed status, so the
// process exits non-zero after printing it.
var errRejected = errors.New("request rejected")

func newLoginCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and sync credits",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := requireFlag(cmd.Flags(), flagEmail)
			if err != nil {
				return err
			}
			password, err := requireFlag(cmd.Flags(), flagPassword)
			if err != nil {
				return err
			}
			return run(cmd, cfg, func(ctx context.Context, app *application) error {
				result := app.pages.Login(ctx, forms.LoginForm{Email: email, Password: password})
				if err := printResult(cmd.OutOrStdout(), result); err != nil {
					return err
				}
				printBadges(cmd.OutOrStdout(), app.chrome.Badges())
				return nil
			})
		},
	}
	cmd.Flags().String(flagEmail, "", "account email")
	cmd.Flags().String(flagPassword, "", "account password")
	return cmd
}

func newRegisterCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			form := forms.RegisterForm{}
			var err error
			if form.Name, err = cmd.Flags().GetString(flagName); err != nil {
				return err
			}
			if form.Email, err = cmd.Flags().GetString(flagEmail); err != nil {
				return err
			}
			if form.Password, err = cmd.Flags().GetString(flagPassword); err != nil {
				return err
			}
			if form.ConfirmPassword, err = cmd.Flags().GetString(flagConfirm); err != nil {
				return err
			}
			return run(cmd, cfg, func(ctx context.Context, app *application) error {
				return printResult(cmd.OutOrStdout(), app.pages.Register(ctx, form))
			})
		},
	}
	cmd.Flags().String(flagName, "", "profile name")
	cmd.Flags().String(flagEmail, "", "@stud.noroff.no or @noroff.no email")
	cmd.Flags().String(flagPassword, "", "password, at least 8 characters")
	cmd.Flags().String(flagConfirm, "", "password again")
	return cmd
}

func newLogoutCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear local credits",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, cfg, func(ctx context.Context, app *application) error {
				return printResult(cmd.OutOrStdout(), app.pages.Logout(ctx))
			})
		},
	}
}

func newListingsCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listings",
		Short: "Browse or search listings",
		RunE: func(cmd *cobra.Command, args []string) error {
			route, err := routeFromFlags(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd, cfg, func(ctx context.Context, app *application) error {
				view := app.pages.Listings(ctx, route)
				out := cmd.OutOrStdout()
				printStatus(out, view.Status)
				for _, listing := range view.Page.Listings {
					printListingLine(out, listing)
				}
				if view.Empty != "" {
					fmt.Fprintln(out, view.Empty)
				}
				fmt.Fprintf(out, "Page %d of %d (%d listings)\n", view.Page.Number, view.Page.TotalPages, view.Page.Total)
				return nil
			})
		},
	}
	cmd.Flags().String(flagQuery, "", "search text")
	cmd.Flags().String(flagSort, string(listings.SortNewest), "sort order: "+joinSortKeys())
	cmd.Flags().Int(flagPage, 1, "page number")
	cmd.Flags().Bool(flagActive, false, "only show auctions that are still open")
	return cmd
}

func newListingCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "listing <id>",
		Short: "Show a listing with its bids",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, cfg, func(ctx context.Context, app *application) error {
				printListingView(cmd.OutOrStdout(), app.pages.Listing(ctx, args[0]))
				return nil
			})
		},
	}
}

func newBidCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "bid <id> <amount>",
		Short: "Place a bid, reserving credits while you lead",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, cfg, func(ctx context.Context, app *application) error {
				view, result := app.pages.PlaceBid(ctx, args[0], args[1])
				if err := printResult(cmd.OutOrStdout(), result); err != nil {
					return err
				}
				printListingView(cmd.OutOrStdout(), view)
				return nil
			})
		},
	}
}

func newCreateCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a new listing",
		RunE: func(cmd *cobra.Command, args []string) error {
			form, err := listingFormFromFlags(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd, cfg, func(ctx context.Context, app *application) error {
				return printResult(cmd.OutOrStdout(), app.pages.CreateListing(ctx, form))
			})
		},
	}
	addListingFlags(cmd.Flags())
	return cmd
}

func newEditCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Update a listing you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			form, err := listingFormFromFlags(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd, cfg, func(ctx context.Context, app *application) error {
				editor := app.pages.LoadEditor(ctx, args[0])
				if !editor.Editable {
					return printResult(cmd.OutOrStdout(), pages.Result{Status: editor.Status})
				}
				form = keepUnchanged(cmd.Flags(), form, editor.Listing)
				return printResult(cmd.OutOrStdout(), app.pages.UpdateListing(ctx, args[0], form))
			})
		},
	}
	addListingFlags(cmd.Flags())
	return cmd
}

func newDeleteCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a listing you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, cfg, func(ctx context.Context, app *application) error {
				return printResult(cmd.OutOrStdout(), app.pages.DeleteListing(ctx, args[0]))
			})
		},
	}
}

func newProfileCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "profile [name]",
		Short: "Show a profile; your own when no name is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return run(cmd, cfg, func(ctx context.Context, app *application) error {
				printProfileView(cmd.OutOrStdout(), app.pages.Profile(ctx, name))
				return nil
			})
		},
	}
}

func newAvatarCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "avatar <url>",
		Short: "Change your avatar image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alt, err := cmd.Flags().GetString(flagAlt)
			if err != nil {
				return err
			}
			return run(cmd, cfg, func(ctx context.Context, app *application) error {
				return printResult(cmd.OutOrStdout(), app.pages.UpdateAvatar(ctx, forms.AvatarForm{URL: args[0], Alt: alt}))
			})
		},
	}
	cmd.Flags().String(flagAlt, "", "alternative text")
	return cmd
}

func newCreditsCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "credits",
		Short: "Show available credits and held bids",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, cfg, func(ctx context.Context, app *application) error {
				view := app.pages.Credits(ctx)
				out := cmd.OutOrStdout()
				printStatus(out, view.Status)
				if view.Badge.Hidden {
					return nil
				}
				fmt.Fprintf(out, "Available: %s\n", view.Badge.Text)
				fmt.Fprintf(out, "Server balance: %s\n", chrome.FormatCredits(view.ServerBase))
				for _, line := range view.Reservations {
					fmt.Fprintf(out, "  %s  %s  %s (%s)\n", line.ListingID, chrome.FormatCredits(line.Amount), line.Title, line.Status)
				}
				return nil
			})
		},
	}
}

func newHistoryCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the credit history, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := cmd.Flags().GetInt(flagLimit)
			if err != nil {
				return err
			}
			return run(cmd, cfg, func(ctx context.Context, app *application) error {
				out := cmd.OutOrStdout()
				transactions := app.session.Credits().Transactions()
				if limit > 0 && len(transactions) > limit {
					transactions = transactions[:limit]
				}
				if len(transactions) == 0 {
					fmt.Fprintln(out, "No credit activity yet.")
				}
				for _, transaction := range transactions {
					fmt.Fprintf(out, "%s  %-12s %+d  %s  (balance %s)\n",
						formatTime(transaction.Timestamp),
						transaction.Type,
						transaction.Amount.Int64(),
						transaction.Description,
						chrome.FormatCredits(transaction.BalanceAfter.Int64()))
				}
				return nil
			})
		},
	}
	cmd.Flags().Int(flagLimit, 20, "number of entries to show; 0 shows all")
	return cmd
}

func addListingFlags(flags *pflag.FlagSet) {
	flags.String(flagTitle, "", "listing title, at least 3 characters")
	flags.String(flagDescription, "", "listing description")
	flags.String(flagEndsAt, "", "auction end, RFC 3339 or 2006-01-02T15:04 local time")
	flags.String(flagTags, "", "comma separated tags")
	flags.StringArray(flagMedia, nil, "image URL, optionally followed by |alt text; repeatable")
}

// keepUnchanged fills the fields not given on the command line from the
// current listing.
func keepUnchanged(flags *pflag.FlagSet, form forms.ListingForm, current auctionapi.Listing) forms.ListingForm {
	if !flags.Changed(flagTitle) {
		form.Title = current.Title
	}
	if !flags.Changed(flagDescription) {
		form.Description = current.Description
	}
	if !flags.Changed(flagEndsAt) {
		form.EndsAt = current.EndsAt.Format(time.RFC3339)
	}
	if !flags.Changed(flagTags) {
		form.Tags = strings.Join(current.Tags, ", ")
	}
	if !flags.Changed(flagMedia) {
		form.Media = form.Media[:0]
		for _, media := range current.Media {
			form.Media = append(form.Media, forms.MediaField{URL: media.URL, Alt: media.Alt})
		}
	}
	return form
}

func listingFormFromFlags(flags *pflag.FlagSet) (forms.ListingForm, error) {
	form := forms.ListingForm{Location: time.Local}
	var err error
	if form.Title, err = flags.GetString(flagTitle); err != nil {
		return form, err
	}
	if form.Description, err = flags.GetString(flagDescription); err != nil {
		return form, err
	}
	if form.EndsAt, err = flags.GetString(flagEndsAt); err != nil {
		return form, err
	}
	if form.Tags, err = flags.GetString(flagTags); err != nil {
		return form, err
	}
	media, err := flags.GetStringArray(flagMedia)
	if err != nil {
		return form, err
	}
	for _, entry := range media {
		address, alt, _ := strings.Cut(entry, "|")
		form.Media = append(form.Media, forms.MediaField{URL: address, Alt: alt})
	}
	return form, nil
}

func routeFromFlags(flags *pflag.FlagSet) (listings.Route, error) {
	query, err := flags.GetString(flagQuery)
	if err != nil {
		return listings.Route{}, err
	}
	sortKey, err := flags.GetString(flagSort)
	if err != nil {
		return listings.Route{}, err
	}
	page, err := flags.GetInt(flagPage)
	if err != nil {
		return listings.Route{}, err
	}
	active, err := flags.GetBool(flagActive)
	if err != nil {
		return listings.Route{}, err
	}
	return listings.Route{Query: strings.TrimSpace(query), Sort: listings.ParseSort(sortKey), Page: page, Active: active}, nil
}

func joinSortKeys() string {
	keys := listings.SortKeys()
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		names = append(names, string(key))
	}
	return strings.Join(names, ", ")
}

func printStatus(out io.Writer, status pages.Status) {
	if !status.Visible() {
		return
	}
	fmt.Fprintf(out, "[%s] %s\n", status.Tone, status.Message)
}

func printResult(out io.Writer, result pages.Result) error {
	printStatus(out, result.Status)
	if result.Redirect != "" {
		fmt.Fprintf(out, "Next: %s\n", result.Redirect)
	}
	if result.Status.Failed() {
		return errRejected
	}
	return nil
}

func printBadges(out io.Writer, badges chrome.Badges) {
	if !badges.SignedIn {
		return
	}
	line := "Signed in as " + badges.Name
	if !badges.Available.Hidden {
		line += " with " + badges.Available.Text + " available"
	}
	fmt.Fprintln(out, line)
}

func printListingLine(out io.Writer, listing auctionapi.Listing) {
	highest := "no bids"
	if amount := listing.HighestBidAmount(); amount > 0 {
		highest = chrome.FormatCredits(amount)
	}
	fmt.Fprintf(out, "%s  %s  (%s, ends %s)\n", listing.ID, listing.Title, highest, formatTime(listing.EndsAt))
}

func printListingView(out io.Writer, view pages.ListingView) {
	printStatus(out, view.Status)
	listing := view.Listing
	fmt.Fprintf(out, "%s\n", listing.Title)
	if seller := listing.SellerName(); seller != "" {
		fmt.Fprintf(out, "Seller: %s\n", seller)
	}
	if listing.Description != "" {
		fmt.Fprintln(out, listing.Description)
	}
	fmt.Fprintf(out, "Ends: %s\n", formatTime(listing.EndsAt))
	fmt.Fprintf(out, "Highest bid: %s (%d bids)\n", view.HighestBid, view.BidCount)
	if view.Reserved > 0 {
		fmt.Fprintf(out, "You have %s reserved here\n", chrome.FormatCredits(view.Reserved.Int64()))
	}
	if view.Bid.Allowed {
		fmt.Fprintf(out, "Minimum bid: %s\n", chrome.FormatCredits(view.NextMinimum))
		return
	}
	printStatus(out, view.Bid.Notice)
}

func printProfileView(out io.Writer, view pages.ProfileView) {
	printStatus(out, view.Status)
	fmt.Fprintf(out, "%s <%s>\n", view.Profile.Name, view.Profile.Email)
	if view.Own {
		fmt.Fprintf(out, "Available: %s\n", chrome.FormatCredits(view.Available))
	}
	fmt.Fprintln(out, "Active listings:")
	if len(view.Active) == 0 {
		fmt.Fprintln(out, "  "+pages.MessageNoActiveListings)
	}
	for _, listing := range view.Active {
		printListingLine(out, listing)
	}
	fmt.Fprintln(out, "Wins:")
	if len(view.Wins) == 0 {
		fmt.Fprintln(out, "  "+pages.MessageNoWins)
	}
	for _, listing := range view.Wins {
		printListingLine(out, listing)
	}
	for _, line := range view.Reserved {
		fmt.Fprintf(out, "Reserved %s on %s (%s)\n", chrome.FormatCredits(line.Amount), line.Title, line.Status)
	}
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return chrome.FormatDate("", time.Local)
	}
	return chrome.FormatDate(value.Format(time.RFC3339), time.Local)
}
