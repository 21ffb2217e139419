package corpus

// bundled は同梱の学習データ（スパム25件、通常メール25件）
var bundled = []Example{
	// spam
	{Text: "Congratulations! You've won $1,000,000! Click here to claim your prize now!", Label: Spam},
	{Text: "URGENT: Your account has been compromised. Send your password immediately.", Label: Spam},
	{Text: "FREE VIAGRA!!! Buy now and get 90% discount. Limited time offer!", Label: Spam},
	{Text: "You have been selected for a $5000 Walmart gift card. Click to claim.", Label: Spam},
	{Text: "Make money fast! Work from home and earn $10,000 per week guaranteed!", Label: Spam},
	{Text: "Hot singles in your area want to meet you tonight! Click here.", Label: Spam},
	{Text: "Your bank account will be suspended. Verify your details now.", Label: Spam},
	{Text: "Lose 30 pounds in 30 days! Miracle weight loss pill. Order now!", Label: Spam},
	{Text: "Nigerian prince needs your help transferring $10 million dollars.", Label: Spam},
	{Text: "You've won a free iPhone! Just pay shipping. Act now!", Label: Spam},
	{Text: "WINNER!! As a valued customer you have been selected to receive $1000!", Label: Spam},
	{Text: "Claim your lottery prize! You've been randomly selected as winner.", Label: Spam},
	{Text: "Double your Bitcoin investment in 24 hours! Guaranteed returns.", Label: Spam},
	{Text: "Your PayPal account is limited. Click to restore access immediately.", Label: Spam},
	{Text: "FREE entry in 2 a wkly comp to win FA Cup final tkts.", Label: Spam},
	{Text: "Urgent! Your Netflix subscription expires today. Update payment now.", Label: Spam},
	{Text: "Get rich quick! Secret investment strategy revealed. Click here.", Label: Spam},
	{Text: "You have a package waiting. Pay $1.99 shipping to receive.", Label: Spam},
	{Text: "Adult content awaits! Click to see exclusive photos.", Label: Spam},
	{Text: "Your Amazon order has been cancelled. Verify your account.", Label: Spam},
	{Text: "Casino bonus! Get $500 free chips. No deposit required!", Label: Spam},
	{Text: "IRS: You owe back taxes. Pay immediately to avoid arrest.", Label: Spam},
	{Text: "Cheap medications online! No prescription needed. Order today!", Label: Spam},
	{Text: "Your computer is infected! Download our antivirus now - FREE!", Label: Spam},
	{Text: "Meet beautiful women tonight! Dating site with millions of members.", Label: Spam},

	// ham
	{Text: "Hey, are we still meeting for lunch tomorrow at noon?", Label: Ham},
	{Text: "The meeting has been rescheduled to 3pm on Friday.", Label: Ham},
	{Text: "Thanks for your email. I'll review the document and get back to you.", Label: Ham},
	{Text: "Please find attached the quarterly report for your review.", Label: Ham},
	{Text: "Can you send me the project timeline when you get a chance?", Label: Ham},
	{Text: "Happy birthday! Hope you have a wonderful day.", Label: Ham},
	{Text: "Just wanted to follow up on our conversation from yesterday.", Label: Ham},
	{Text: "The team dinner is confirmed for Saturday at 7pm.", Label: Ham},
	{Text: "I've reviewed your proposal and have some feedback to share.", Label: Ham},
	{Text: "Let me know if you need any help with the presentation.", Label: Ham},
	{Text: "Thanks for the update. I'll pass this along to the team.", Label: Ham},
	{Text: "Could you please send the invoice for the last project?", Label: Ham},
	{Text: "I'm running a bit late, will be there in 10 minutes.", Label: Ham},
	{Text: "Great work on the project! The client was very impressed.", Label: Ham},
	{Text: "Reminder: Team standup at 9am tomorrow morning.", Label: Ham},
	{Text: "I've attached the contract for your signature.", Label: Ham},
	{Text: "Would you be available for a quick call this afternoon?", Label: Ham},
	{Text: "Thanks for helping out with the event. It was a success!", Label: Ham},
	{Text: "Please review the budget proposal before our meeting.", Label: Ham},
	{Text: "I'll be out of office next week. Contact John for urgent matters.", Label: Ham},
	{Text: "The new hire starts on Monday. Please welcome them to the team.", Label: Ham},
	{Text: "Can we reschedule our one-on-one to Thursday?", Label: Ham},
	{Text: "I've shared the document with you. Let me know your thoughts.", Label: Ham},
	{Text: "Flight confirmation: Your trip to NYC is booked for May 15.", Label: Ham},
	{Text: "Mom called. She wants you to call her back when you can.", Label: Ham},
}
