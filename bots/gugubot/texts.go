package gugubot

const (
	textGreeting      = "Hi! Add me to a group and send /create_game to start a photo hunt."
	textNeedGroup     = "Without your crew there is no show. Start a game in a group."
	textGameExists    = "A game is already running in this group!"
	textNoGame        = "No game is running in this group. Send /create_game."
	textGameStarted   = "%s is organising a photo hunt! Tap the button to join."
	textJoinButton    = "Join the game"
	textOpenChat      = "Open chat"
	textJoinLink      = "%s, open the chat with me to join."
	textUseJoinButton = "Tap the \"Join the game\" button in a group to play."
	textGameGone      = "That game is already over."
	textJoinedPrivate = "You are in the game of %s! I will send you photos to judge here when it is your turn."
	textJoinedGroup   = "%s joined the game."
	textLeft          = "%s went home early!"
	textNotPlaying    = "You are not playing in this group."
	textNoPlayers     = "No players yet."
	textPlayers       = "Players:\n%s"
	textScores        = "Scores:\n%s"
	textRound         = "New round! %s judges. Send a photo of: %s"
	textArbiter       = "You judge this round. Players hunt for: %s"
	textReview        = "Is this %s? Sent by %s."
	textYes           = "Yes"
	textNo            = "No"
	textPoint         = "%s found %s! Score: %d"
	textNotArbiter    = "You are not judging this round."
	textNothingLeft   = "Nothing left to review."
	textWaiting       = "Waiting for more photos."
	textWinner        = "%s won the photo hunt with %d points! Total wins: %d"
	textNoWinner      = "Game over. Nobody played."
	textUnknown       = "Unknown command: "
	textFailure       = "Something went wrong. Please try again."
)
