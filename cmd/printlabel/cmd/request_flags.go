package cmd

import (
	"github.com/ketutoka/printlabel/internal/label"
	"github.com/spf13/cobra"
)

// addRequestFlags registers the label field flags shared by render and print.
func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().String("sender-name", "", "sender name (required)")
	cmd.Flags().String("sender-phone", "", "sender phone number (required)")
	cmd.Flags().String("recipient-name", "", "recipient name; empty omits the recipient block")
	cmd.Flags().String("recipient-address", "", "recipient address")
	cmd.Flags().String("recipient-phone", "", "recipient phone number")
	cmd.Flags().String("code", "", "shipping code; empty omits the QR block")
	cmd.Flags().String("profile", "", "paper profile (narrow, wide, 58mm, 80mm)")
	cmd.Flags().String("id", "", "label identifier used in the file name (default: content digest)")
}

// requestFromFlags builds a label request; an unset profile takes the
// configured default.
func requestFromFlags(cmd *cobra.Command, defaultProfile string) label.Request {
	get := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	req := label.Request{
		ID:               get("id"),
		SenderName:       get("sender-name"),
		SenderPhone:      get("sender-phone"),
		RecipientName:    get("recipient-name"),
		RecipientAddress: get("recipient-address"),
		RecipientPhone:   get("recipient-phone"),
		ShippingCode:     get("code"),
		PaperProfile:     get("profile"),
	}
	if req.PaperProfile == "" {
		req.PaperProfile = defaultProfile
	}
	return req
}

// hasRequestFlags reports whether any label field was given.
func hasRequestFlags(cmd *cobra.Command) bool {
	for _, name := range []string{"sender-name", "sender-phone", "recipient-name", "code"} {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}
