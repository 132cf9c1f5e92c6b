package service

import (
	"errors"

	"orgreport/internal/model"
	"orgreport/internal/repository"

	"gorm.io/gorm"
)

// maxHierarchyDepth 是部门树遍历的深度上限。
// 父指针结构一旦被脏数据改成环，朴素遍历不会终止；
// 超过上限直接返回 ErrHierarchyTooDeep，宁可拒绝服务也不空转。
const maxHierarchyDepth = 64

// HierarchyService 提供部门树的只读遍历：子树、祖先链、整树。
// 单独拆出来是因为访问控制器和部门写服务都要用它，
// 而部门写服务本身又要经过访问控制器鉴权，合在一起会成环。
type HierarchyService interface {
	// Subtree 返回部门自身及其全部传递子部门的 id 集合。
	Subtree(departmentID uint) ([]uint, error)
	// Ancestors 返回从该部门向上到根的有序部门序列（含自身，自身在最前）。
	Ancestors(departmentID uint) ([]model.Department, error)
	// Tree 构建部门树（根节点 + 嵌套 children），供前端展示。
	Tree() ([]*model.DepartmentNode, error)
}

type hierarchyService struct {
	deptRepo repository.DepartmentRepository
}

func NewHierarchyService(deptRepo repository.DepartmentRepository) HierarchyService {
	return &hierarchyService{deptRepo: deptRepo}
}

// Subtree 用广度优先遍历收集子树 id。
// 不用递归：层级深度由数据决定，递归在损坏数据下会栈溢出；
// 迭代 + 深度护栏 + 已访问集合，三重保证遍历必然终止。
// 已停用的部门也计入子树：停用不级联，其历史报告仍归属原层级。
func (s *hierarchyService) Subtree(departmentID uint) ([]uint, error) {
	if s.deptRepo == nil {
		return nil, ErrInternal
	}

	root, err := s.deptRepo.FindByID(departmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDepartmentNotFound
		}
		return nil, err
	}

	// 一次拉全表构建 children 索引，比逐层查库少 N 次往返；
	// 部门总量在这个业务里是小数字（几十到几百）。
	all, err := s.deptRepo.FindAll(false)
	if err != nil {
		return nil, err
	}
	children := make(map[uint][]uint, len(all))
	for _, d := range all {
		if d.ParentID != nil {
			children[*d.ParentID] = append(children[*d.ParentID], d.ID)
		}
	}

	visited := map[uint]bool{root.ID: true}
	result := []uint{root.ID}
	frontier := []uint{root.ID}

	for depth := 0; len(frontier) > 0; depth++ {
		if depth >= maxHierarchyDepth {
			return nil, ErrHierarchyTooDeep
		}
		next := make([]uint, 0)
		for _, id := range frontier {
			for _, child := range children[id] {
				if visited[child] {
					continue
				}
				visited[child] = true
				result = append(result, child)
				next = append(next, child)
			}
		}
		frontier = next
	}
	return result, nil
}

// Ancestors 沿父指针向上走到根，返回 [自身, 父, 祖父, ..., 根]。
// 同样带深度护栏：路径长度超过 maxHierarchyDepth 视为成环，失败关闭。
func (s *hierarchyService) Ancestors(departmentID uint) ([]model.Department, error) {
	if s.deptRepo == nil {
		return nil, ErrInternal
	}

	all, err := s.deptRepo.FindAll(false)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]model.Department, len(all))
	for _, d := range all {
		byID[d.ID] = d
	}

	current, ok := byID[departmentID]
	if !ok {
		return nil, ErrDepartmentNotFound
	}

	chain := []model.Department{current}
	for current.ParentID != nil {
		if len(chain) >= maxHierarchyDepth {
			return nil, ErrHierarchyTooDeep
		}
		parent, ok := byID[*current.ParentID]
		if !ok {
			// 父部门记录缺失：链在此断掉，当前节点按根处理。
			break
		}
		chain = append(chain, parent)
		current = parent
	}
	return chain, nil
}

// Tree 构建部门树。实现采用两遍扫描：
// 1. 第一遍创建所有节点并放入 map（id -> node）
// 2. 第二遍按 parent 关系把子节点挂到父节点上
// 父节点缺失的节点作为根返回，避免节点丢失。
func (s *hierarchyService) Tree() ([]*model.DepartmentNode, error) {
	if s.deptRepo == nil {
		return nil, ErrInternal
	}

	depts, err := s.deptRepo.FindAll(false)
	if err != nil {
		return nil, err
	}

	nodes := make(map[uint]*model.DepartmentNode, len(depts))
	for _, d := range depts {
		nodes[d.ID] = &model.DepartmentNode{
			ID:       d.ID,
			Name:     d.Name,
			NameEn:   d.NameEn,
			ParentID: d.ParentID,
			Level:    d.Level,
			IsActive: d.IsActive,
			Children: []*model.DepartmentNode{},
		}
	}

	tree := make([]*model.DepartmentNode, 0)
	for _, d := range depts {
		node := nodes[d.ID]
		if d.ParentID != nil {
			if parent, ok := nodes[*d.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		tree = append(tree, node)
	}
	return tree, nil
}
