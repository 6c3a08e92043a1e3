package user

// defaultChatMessages are the built-in chat phrases available to players who
// have not configured their own.
var defaultChatMessages = [16]string{
	"ggs",
	"one more",
	"brb",
	"good luck",
	"well played",
	"that was fun",
	"thanks",
	"too good",
	"sorry",
	"my b",
	"lol",
	"wow",
	"gotta go",
	"one sec",
	"let's play again later",
	"bad connection",
}

// DefaultMessages returns a fresh copy of the built-in chat message set.
func DefaultMessages() []string {
	return append([]string(nil), defaultChatMessages[:]...)
}
