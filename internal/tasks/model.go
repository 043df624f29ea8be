package tasks

// Task is the wire and storage shape of a tarefa. Field names are part of
// the public contract and stay in Portuguese.
type Task struct {
	ID        string `json:"id"`
	Descricao string `json:"descricao"`
	Completa  bool   `json:"completa"`
}

func indexOf(list []Task, id string) int {
	for i, t := range list {
		if t.ID == id {
			return i
		}
	}
	return -1
}
