package domain

// StatusDone is the final message of every status stream
const StatusDone = "DONE"
