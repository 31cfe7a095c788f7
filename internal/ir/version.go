package ir

// Version is the senselogic release reported by the CLI.
const Version = "0.1.0"
