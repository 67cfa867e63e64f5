package repository

// Store is the explicitly owned in-memory state of the process. It is built
// once at startup, handed to every component constructor, and torn down on
// exit; persistence across restarts goes through the migration snapshot.
// Never a hidden global.
type Store struct {
	Notes     NoteRepository
	Versions  NoteVersionRepository
	KeyShares KeyShareRepository
	Contexts  SharedContextRepository
	Proposals ProposalRepository
	Config    ConfigRepository
}

func NewStore(defaultApprovalThreshold int) *Store {
	return &Store{
		Notes:     NewNoteRepository(),
		Versions:  NewNoteVersionRepository(),
		KeyShares: NewKeyShareRepository(),
		Contexts:  NewSharedContextRepository(),
		Proposals: NewProposalRepository(),
		Config:    NewConfigRepository(defaultApprovalThreshold),
	}
}
