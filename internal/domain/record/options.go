package record

// ListRecordsOptions provides filtering options for listing records.
type ListRecordsOptions struct {
	Collection string
	Limit      int
	Offset     int
}
