package game

// DefaultActions is the built-in action set every room starts with.
var DefaultActions = []string{
	"Sing a holiday song for 10 seconds",
	"Do 5 squats",
	"Do your best Santa impression",
	"Talk like a robot for 1 minute",
	"Tell a terrible joke",
	"Say 3 nice things about the player on your right",
	"Strike a reindeer pose for 15 seconds",
	"Take a sip of water",
	"Make a festive toast",
	"Say 'Ho Ho Ho' 5 times",
	"Mime a holiday movie",
	"Share your best advice for next year",
	"Clap a 10 beat rhythm",
	"Dance for 15 seconds",
	"Describe your ideal present",
	"Pick 3 forbidden words and avoid them for a round",
	"Say every player's name as fast as you can",
	"Tell a (mildly) embarrassing story",
	"Make an elf noise",
	"Challenge someone to rock-paper-scissors",
	"Say a tongue twister",
	"Beatbox for 10 seconds",
	"Two truths and a lie, quickly",
	"Imitate a player for 20 seconds without saying who",
	"Give a speech as King or Queen of the holidays",
	"Say a word and everyone echoes it back",
	"Invent a secret handshake with someone",
	"Make a rhyme with 'cookie'",
	"Make a rhyme with 'snow'",
	"Do 3 sit-ups (or something equivalent)",
	"Say the last emoji you used",
	"Confess your favourite holiday food",
	"Make up a one-line carol",
	"Give a dramatic round of applause",
	"Stare intensely for 10 seconds",
	"Say something kind to a random person",
	"Make a Grinch face for 10 seconds",
	"Tell a mini story using 3 words the others give you",
	"Talk for 30 seconds without using the letter 'a'",
	"Toast to friendship",
	"Share a random fact about yourself",
	"Impersonate a TV presenter",
	"Choose a word everyone must end their sentences with for a round",
	"Change your name to a festive one for a round",
	"Make a jingle bell sound",
	"Take an exaggerated bow",
	"Say 'happy holidays' in another language",
	"Ask someone a deep question",
	"Do a 10 second hand choreography",
}
