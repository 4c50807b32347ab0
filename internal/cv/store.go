package cv

import "sync"

// Store 是块位置与内容的唯一可信来源。
// 所有变更都经过这里的操作完成，每个操作在锁内原子执行；
// 引用不存在的块或区域时保持状态不变并返回 false。
type Store struct {
	mu     sync.RWMutex
	layout Layout
}

// NewStore 以默认布局创建 Store。
func NewStore() *Store {
	return &Store{layout: DefaultLayout()}
}

// Layout 返回当前布局的深拷贝。
func (s *Store) Layout() Layout {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layout.Clone()
}

// Block 返回指定块的深拷贝。
func (s *Store) Block(id string) (Block, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.layout.Find(id)
	if !ok {
		return Block{}, false
	}
	return b.Clone(), true
}

// SetLayout 整体替换三区状态，不做额外校验。
func (s *Store) SetLayout(layout Layout) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layout = layout.Clone()
}

// ResetLayout 恢复内置默认布局。
func (s *Store) ResetLayout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layout = DefaultLayout()
}

// MoveBlock 将块从 from 区移到 to 区的 toIndex 位置。
// toIndex 为负数或超出范围时追加到末尾；from == to 或块不在 from 区时不做任何事。
// unused 区按显式位置维护，不从目录重新推导。
func (s *Store) MoveBlock(id string, from, to Zone, toIndex int) bool {
	if from == to {
		return false
	}
	if _, ok := ParseZone(string(from)); !ok {
		return false
	}
	if _, ok := ParseZone(string(to)); !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	src := s.layout.Zone(from)
	idx := indexOf(src, id)
	if idx < 0 {
		return false
	}
	block := src[idx]

	newFrom := make([]Block, 0, len(src)-1)
	newFrom = append(newFrom, src[:idx]...)
	newFrom = append(newFrom, src[idx+1:]...)

	dst := s.layout.Zone(to)
	newTo := make([]Block, 0, len(dst)+1)
	if toIndex >= 0 && toIndex <= len(dst) {
		newTo = append(newTo, dst[:toIndex]...)
		newTo = append(newTo, block)
		newTo = append(newTo, dst[toIndex:]...)
	} else {
		newTo = append(newTo, dst...)
		newTo = append(newTo, block)
	}

	s.layout.setZone(from, newFrom)
	s.layout.setZone(to, newTo)
	return true
}

// ReorderBlock 在同一区内把 activeID 移到 overID 当前所在位置，中间元素依次平移。
func (s *Store) ReorderBlock(zone Zone, activeID, overID string) bool {
	if activeID == overID {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.layout.Zone(zone)
	oldIndex := indexOf(list, activeID)
	newIndex := indexOf(list, overID)
	if oldIndex < 0 || newIndex < 0 {
		return false
	}

	s.layout.setZone(zone, arrayMove(list, oldIndex, newIndex))
	return true
}

// UpdateBlockData 将 patch 浅合并进块的 data，未出现的字段保持原值。
func (s *Store) UpdateBlockData(id string, patch map[string]any) bool {
	return s.updateBlock(id, func(b *Block) {
		merged := cloneMap(b.Data)
		for k, v := range patch {
			merged[k] = cloneValue(v)
		}
		b.Data = merged
	})
}

// SetBlockData 整体替换块的 data。
func (s *Store) SetBlockData(id string, data map[string]any) bool {
	return s.updateBlock(id, func(b *Block) {
		b.Data = cloneMap(data)
	})
}

func (s *Store) updateBlock(id string, update func(b *Block)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, z := range Zones {
		list := s.layout.Zone(z)
		idx := indexOf(list, id)
		if idx < 0 {
			continue
		}
		updated := make([]Block, len(list))
		copy(updated, list)
		block := updated[idx]
		update(&block)
		updated[idx] = block
		s.layout.setZone(z, updated)
		return true
	}
	return false
}

func indexOf(blocks []Block, id string) int {
	for i, b := range blocks {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func arrayMove(list []Block, from, to int) []Block {
	out := make([]Block, 0, len(list))
	out = append(out, list[:from]...)
	out = append(out, list[from+1:]...)

	moved := list[from]
	tail := append([]Block{moved}, out[to:]...)
	return append(out[:to], tail...)
}
