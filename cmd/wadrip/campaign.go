package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ptrelli/wadrip/internal/campaign"
	"github.com/ptrelli/wadrip/internal/config"
	"github.com/ptrelli/wadrip/internal/store"
)

var campaignListStatus string

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Campaign inspection commands",
}

var campaignListCmd = &cobra.Command{
	Use:   "list",
	Short: "List campaigns",
	RunE:  runCampaignList,
}

var campaignStatsCmd = &cobra.Command{
	Use:   "stats <campaign_id>",
	Short: "Show campaign statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runCampaignStats,
}

var campaignQueueCmd = &cobra.Command{
	Use:   "queue <campaign_id>",
	Short: "Show campaign queue items",
	Args:  cobra.ExactArgs(1),
	RunE:  runCampaignQueue,
}

func init() {
	campaignListCmd.Flags().StringVar(&campaignListStatus, "status", "", "Filter by status (draft, scheduled, running, paused, completed, cancelled)")

	campaignCmd.AddCommand(campaignListCmd, campaignStatsCmd, campaignQueueCmd)
	rootCmd.AddCommand(campaignCmd)
}

func openCampaignStore() (*store.Store, error) {
	if cfgFile == "" {
		return nil, fmt.Errorf("config file is required (use -c flag)")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open campaign store: %w", err)
	}

	return st, nil
}

func runCampaignList(cmd *cobra.Command, args []string) error {
	st, err := openCampaignStore()
	if err != nil {
		return err
	}
	defer st.Close()

	var list []*campaign.Campaign
	if campaignListStatus != "" {
		list, err = st.ListByStatus(campaign.Status(campaignListStatus))
	} else {
		list, err = st.List()
	}
	if err != nil {
		return fmt.Errorf("failed to list campaigns: %w", err)
	}

	if len(list) == 0 {
		fmt.Println("No campaigns")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tCONTACTS\tPENDING\tSENT\tREPLIED")
	for _, c := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			c.ID, c.Name, c.Status, len(c.ContactIDs),
			c.Stats.Pending, c.Stats.MessagesSent, c.Stats.Replied)
	}
	return w.Flush()
}

func runCampaignStats(cmd *cobra.Command, args []string) error {
	st, err := openCampaignStore()
	if err != nil {
		return err
	}
	defer st.Close()

	c, err := st.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to load campaign: %w", err)
	}

	fmt.Printf("Campaign: %s (%s)\n", c.Name, c.ID)
	fmt.Printf("  Status:          %s\n", c.Status)
	fmt.Printf("  Total items:     %d\n", c.Stats.Total)
	fmt.Printf("  Pending:         %d\n", c.Stats.Pending)
	fmt.Printf("  Sent:            %d\n", c.Stats.MessagesSent)
	fmt.Printf("  Delivered:       %d\n", c.Stats.Delivered)
	fmt.Printf("  Read:            %d\n", c.Stats.Read)
	fmt.Printf("  Failed:          %d\n", c.Stats.Failed)
	fmt.Printf("  Replied:         %d\n", c.Stats.Replied)
	fmt.Printf("  Not interested:  %d\n", c.Stats.NotInterested)
	fmt.Printf("  Reply rate:      %.1f%%\n", c.Stats.ReplyRate*100)
	fmt.Printf("  Conversion rate: %.1f%%\n", c.Stats.ConversionRate*100)
	return nil
}

func runCampaignQueue(cmd *cobra.Command, args []string) error {
	st, err := openCampaignStore()
	if err != nil {
		return err
	}
	defer st.Close()

	c, err := st.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to load campaign: %w", err)
	}

	if len(c.Queue) == 0 {
		fmt.Println("Queue is empty")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CONTACT\tSEQ\tSTATUS\tRETRIES\tSCHEDULED\tMESSAGE_ID")
	for _, it := range c.Queue {
		scheduled := "-"
		if it.FollowUpScheduledFor != nil {
			scheduled = it.FollowUpScheduledFor.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\t%s\n",
			it.ContactID, it.SequenceIndex, it.Status, it.RetryCount, scheduled, it.MessageID)
	}
	return w.Flush()
}
