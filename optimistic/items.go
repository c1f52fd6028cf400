package optimistic

// Item is anything listed by id: patients, doctors, queue entries and
// appointments
type Item interface {
	GetID() uint
}

// The list helpers below never modify their input, so a snapshot taken before
// the change still holds the old list.

// ReplaceItem swaps the element with item's id for item
func ReplaceItem[T Item](items []T, item T) []T {
	return PatchItem(items, item.GetID(), func(t *T) { *t = item })
}

// InsertItem appends item, or replaces the element with the same id
func InsertItem[T Item](items []T, item T) []T {
	for _, it := range items {
		if it.GetID() == item.GetID() {
			return ReplaceItem(items, item)
		}
	}
	out := make([]T, 0, len(items)+1)
	out = append(out, items...)
	return append(out, item)
}

func RemoveItem[T Item](items []T, id uint) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if it.GetID() != id {
			out = append(out, it)
		}
	}
	return out
}

// PatchItem applies patch to a copy of the element with id
func PatchItem[T Item](items []T, id uint, patch func(*T)) []T {
	out := make([]T, len(items))
	copy(out, items)
	for i := range out {
		if out[i].GetID() == id {
			patch(&out[i])
		}
	}
	return out
}

// RevertItems undoes a change to the elements with ids only: each is put
// back as it was before, or removed if it did not exist. Other elements keep
// their current value.
func RevertItems[T Item](ids ...uint) func(before, current interface{}) interface{} {
	return func(before, current interface{}) interface{} {
		old, _ := before.([]T)
		items, _ := current.([]T)
		for _, id := range ids {
			if orig, ok := findItem(old, id); ok {
				items = InsertItem(items, orig)
			} else {
				items = RemoveItem(items, id)
			}
		}
		return items
	}
}

func findItem[T Item](items []T, id uint) (T, bool) {
	for _, it := range items {
		if it.GetID() == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// Items adapts a list change to Mutation.Apply. Data that is not a []T is
// treated as an empty list.
func Items[T Item](fn func([]T) []T) func(interface{}) interface{} {
	return func(data interface{}) interface{} {
		items, _ := data.([]T)
		return fn(items)
	}
}

// Reconciled adapts a list change driven by the server result to
// Mutation.Reconcile. Results that are not a *T or T leave the list alone.
func Reconciled[T Item](fn func(items []T, result T) []T) func(interface{}, interface{}) interface{} {
	return func(data interface{}, result interface{}) interface{} {
		items, _ := data.([]T)
		switch r := result.(type) {
		case *T:
			if r != nil {
				return fn(items, *r)
			}
		case T:
			return fn(items, r)
		}
		return data
	}
}
