package waiter

import (
	"fmt"
	"strings"

	"waiter/internal/catalog"
	"waiter/internal/order"
)

const (
	msgWakeAck        = "Yes, I'm listening!"
	msgListening      = "I'm listening. What would you like to order?"
	msgNoAudio        = "I couldn't hear anything. Please try speaking closer to the microphone."
	msgNoText         = "I didn't catch that. Please speak clearly and try again."
	msgNotUnderstood  = "I'm sorry, I didn't understand. Can you repeat that?"
	msgWhichItem      = "I didn't catch which item you'd like. Can you repeat?"
	msgHowMany        = "How many would you like?"
	msgMenuIntro      = "Let me tell you about our menu."
	msgConfirmed      = "Great! Your order is confirmed."
	msgCancelled      = "No problem. What would you like instead?"
	msgWhichInfo      = "Which item would you like to know about?"
	msgNothingOrdered = "You haven't ordered anything yet."
	msgConfirmPrompt  = "Shall I confirm your order?"
	msgHello          = "Hello! What would you like to order?"
	msgAnythingElse   = "Anything else?"
	msgRetry          = "Sorry, I encountered an error. Let me try again."
	msgFatal          = "I'm experiencing technical difficulties. Please restart the system."
	msgSaved          = "Thank you! Your order has been saved."
	noDescription     = "No description available"
)

func msgAdded(qty int, name string, total order.Money) string {
	return fmt.Sprintf("Added %d %s to your order. That's $%s.", qty, name, total)
}

func msgNotOnMenu(name string) string {
	return fmt.Sprintf("Sorry, I couldn't find %s on our menu. Would you like to hear our suggestions?", name)
}

func msgPopular(items []catalog.Item) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprintf("%s for $%s", it.Name, it.Price)
	}
	return "Our popular items are: " + strings.Join(parts, ", ")
}

func msgItemInfo(it catalog.Item) string {
	desc := it.Description
	if desc == "" {
		desc = noDescription
	}
	return fmt.Sprintf("%s: %s. It costs $%s.", it.Name, strings.TrimRight(desc, "."), it.Price)
}

func msgNoInfo(name string) string {
	return fmt.Sprintf("Sorry, I don't have information about %s.", name)
}

func msgSummary(o *order.Order) string {
	parts := make([]string, len(o.Lines))
	for i, l := range o.Lines {
		parts[i] = fmt.Sprintf("%d %s", l.Quantity, l.Name)
	}
	return fmt.Sprintf("Your order: %s. Total: $%s", strings.Join(parts, ", "), o.Total())
}
